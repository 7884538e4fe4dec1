// Package media provides headless playback units whose playheads advance
// with a clock. They stand in for a browser's video and waveform elements.
package media

import (
	"sync"
	"time"
)

// PlaybackStatus is the transport state of a unit.
type PlaybackStatus int

const (
	StatusStopped PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	}
	return "stopped"
}

// ClockUnit is a software playhead. While playing, its position advances by
// rate seconds per wall-clock second; a rate other than 1 simulates a
// decoder that runs fast or slow.
type ClockUnit struct {
	mu          sync.Mutex
	name        string
	source      string
	status      PlaybackStatus
	position    float64
	duration    float64
	rate        float64
	lastUpdated time.Time
	muted       bool
	destroyed   bool
	handlers    []func()
	now         func() time.Time
}

// Option customizes a ClockUnit.
type Option func(*ClockUnit)

// WithRate sets the playback rate.
func WithRate(rate float64) Option {
	return func(u *ClockUnit) { u.rate = rate }
}

// WithDuration clamps the playhead to [0, d] seconds.
func WithDuration(d float64) Option {
	return func(u *ClockUnit) { u.duration = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(u *ClockUnit) { u.now = now }
}

// NewClockUnit returns a stopped unit at position 0.
func NewClockUnit(name, source string, opts ...Option) *ClockUnit {
	u := &ClockUnit{
		name:   name,
		source: source,
		rate:   1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.lastUpdated = u.now()
	return u
}

// Name returns the unit name.
func (u *ClockUnit) Name() string {
	return u.name
}

// Source returns the loaded media URL.
func (u *ClockUnit) Source() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.source
}

// Status returns the transport state.
func (u *ClockUnit) Status() PlaybackStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Load replaces the source and rewinds to 0, stopped.
func (u *ClockUnit) Load(url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.source = url
	u.status = StatusStopped
	u.position = 0
	u.lastUpdated = u.now()
	return nil
}

// Play starts advancing the playhead.
func (u *ClockUnit) Play() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed || u.status == StatusPlaying {
		return
	}
	u.position = u.positionLocked()
	u.lastUpdated = u.now()
	u.status = StatusPlaying
}

// Pause freezes the playhead.
func (u *ClockUnit) Pause() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != StatusPlaying {
		return
	}
	u.position = u.positionLocked()
	u.lastUpdated = u.now()
	u.status = StatusPaused
}

// CurrentTime returns the playhead in seconds.
func (u *ClockUnit) CurrentTime() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.positionLocked()
}

// SetCurrentTime moves the playhead without firing interaction handlers.
func (u *ClockUnit) SetCurrentTime(seconds float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.position = u.clamp(seconds)
	u.lastUpdated = u.now()
}

// Muted reports the mute flag.
func (u *ClockUnit) Muted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.muted
}

// SetMuted sets the mute flag.
func (u *ClockUnit) SetMuted(muted bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.muted = muted
}

// OnInteraction registers fn for user seeks.
func (u *ClockUnit) OnInteraction(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handlers = append(u.handlers, fn)
}

// Seek moves the playhead as a user would and notifies interaction handlers.
func (u *ClockUnit) Seek(seconds float64) {
	u.mu.Lock()
	if u.destroyed {
		u.mu.Unlock()
		return
	}
	u.position = u.clamp(seconds)
	u.lastUpdated = u.now()
	handlers := make([]func(), len(u.handlers))
	copy(handlers, u.handlers)
	u.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Destroy stops the unit and drops its handlers.
func (u *ClockUnit) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.position = u.positionLocked()
	u.status = StatusStopped
	u.handlers = nil
	u.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (u *ClockUnit) Destroyed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.destroyed
}

func (u *ClockUnit) positionLocked() float64 {
	if u.status != StatusPlaying {
		return u.position
	}
	elapsed := u.now().Sub(u.lastUpdated).Seconds()
	return u.clamp(u.position + elapsed*u.rate)
}

func (u *ClockUnit) clamp(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if u.duration > 0 && seconds > u.duration {
		return u.duration
	}
	return seconds
}
