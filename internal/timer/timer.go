package timer

import (
	"sync"
	"time"
)

// Task is a repeating scheduled callback. Stop is safe to call more than once.
// A tick that was already running when Stop was called may still complete, so
// callbacks must check their own state before mutating anything.
type Task interface {
	Stop()
}

// Scheduler starts repeating tasks.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Task
}

// TickerScheduler runs each task on its own goroutine driven by a time.Ticker.
// Ticks of one task never overlap: a slow callback makes the ticker drop ticks.
type TickerScheduler struct{}

// NewTickerScheduler returns a Scheduler backed by time.Ticker.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Every implements Scheduler.
func (s *TickerScheduler) Every(interval time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			// Stop may race with a pending tick; prefer the stop.
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

// Stop implements Task.
func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
