// Package timertest provides a Scheduler whose ticks are fired by hand.
package timertest

import (
	"sync"
	"time"

	"github.com/stemsync/karaoke/internal/timer"
)

// Manual records scheduled tasks and fires them only when told to.
type Manual struct {
	mu    sync.Mutex
	tasks []*Task
}

// Task is a task registered on a Manual scheduler.
type Task struct {
	Interval time.Duration

	mu      sync.Mutex
	fn      func()
	stopped bool
	stops   int
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Every implements timer.Scheduler.
func (m *Manual) Every(interval time.Duration, fn func()) timer.Task {
	t := &Task{Interval: interval, fn: fn}
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return t
}

// Tasks returns every task ever scheduled, in creation order.
func (m *Manual) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Last returns the most recently scheduled task, or nil.
func (m *Manual) Last() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil
	}
	return m.tasks[len(m.tasks)-1]
}

// Tick fires every task that has not been stopped.
func (m *Manual) Tick() {
	for _, t := range m.Tasks() {
		if !t.Stopped() {
			t.Fire()
		}
	}
}

// Fire runs the callback even if the task was stopped. This simulates a tick
// that was already queued when Stop was called.
func (t *Task) Fire() {
	t.fn()
}

// Stop implements timer.Task.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.stops++
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// StopCalls returns how many times Stop was called.
func (t *Task) StopCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}
