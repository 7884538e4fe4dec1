package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer"
)

const (
	DefaultDriftInterval  = 500 * time.Millisecond
	DefaultDriftTolerance = 0.1
	DefaultWaveformHeight = 80

	progressColor = "#000"

	labelPlay   = "Play"
	labelPause  = "Pause"
	labelUnmute = "Unmute"
)

// ErrNoSession is returned by transport operations called before Initialize.
var ErrNoSession = errors.New("playback session not initialized")

// Config tunes the controller.
type Config struct {
	DriftInterval  time.Duration
	DriftTolerance float64
	WaveformHeight int
}

// Controller keeps one video unit and two waveform units locked to a common
// timeline. All session state is guarded by mu, which serializes user
// commands, interaction events and drift ticks.
type Controller struct {
	renderer  Renderer
	video     VideoUnit
	controls  Controls
	scheduler timer.Scheduler
	observer  DriftObserver
	log       *slog.Logger
	cfg       Config

	mu      sync.Mutex
	session *Session
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDriftObserver reports drift corrections to o.
func WithDriftObserver(o DriftObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController returns a controller with no live session.
func NewController(renderer Renderer, video VideoUnit, controls Controls, scheduler timer.Scheduler, cfg Config, opts ...Option) *Controller {
	if cfg.DriftInterval <= 0 {
		cfg.DriftInterval = DefaultDriftInterval
	}
	if cfg.DriftTolerance <= 0 {
		cfg.DriftTolerance = DefaultDriftTolerance
	}
	if cfg.WaveformHeight <= 0 {
		cfg.WaveformHeight = DefaultWaveformHeight
	}
	c := &Controller{
		renderer:  renderer,
		video:     video,
		controls:  controls,
		scheduler: scheduler,
		cfg:       cfg,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize replaces the live session with a new one built from urls.
// The previous session's units are destroyed and its sweep stopped before any
// new unit is created.
func (c *Controller) Initialize(urls model.MediaURLs) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.release()
		c.session = nil
	}

	if err := c.video.Load(urls.Video); err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	s := &Session{
		urls:  urls,
		video: c.video,
	}
	sources := [...]string{Instrumental: urls.Instrumental, Vocal: urls.Vocals}

	for _, key := range Tracks {
		style := trackStyles[key]
		unit, err := c.renderer.NewWaveform(WaveformOptions{
			Container:     style.container,
			WaveColor:     style.color,
			ProgressColor: progressColor,
			URL:           sources[key],
			Height:        c.cfg.WaveformHeight,
			Interactive:   true,
		})
		if err != nil {
			s.release()
			return fmt.Errorf("failed to create %s waveform: %w", key, err)
		}
		s.tracks[key] = unit
		key := key // per-iteration copy (go 1.21 loop semantics)
		unit.OnInteraction(func() { c.onInteraction(s, key) })
	}

	s.sweep = c.scheduler.Every(c.cfg.DriftInterval, func() { c.sweepTick(s) })
	c.session = s

	c.controls.SetTransport(labelPlay, false)
	for _, key := range Tracks {
		c.controls.SetMuteButton(key, muteLabel(key, true), false)
	}
	c.controls.ShowResults(urls)

	c.log.Info("playback session initialized",
		slog.String("video", urls.Video),
		slog.String("instrumental", urls.Instrumental),
		slog.String("vocals", urls.Vocals),
	)
	return nil
}

// Close releases the live session, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.release()
		c.session = nil
	}
}

// IsPlaying reports the shared playing flag of the live session.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.playing
}

// ResyncFrom snaps the other audio track and the video to master's playhead.
func (c *Controller) ResyncFrom(master TrackKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoSession
	}
	c.resync(c.session, master)
	return nil
}

func (c *Controller) resync(s *Session, master TrackKey) {
	t := s.track(master).CurrentTime()
	s.track(master.Other()).SetCurrentTime(t)
	s.video.SetCurrentTime(t)
	c.log.Debug("resync", slog.String("master", master.String()), slog.Float64("time", t))
}

func (c *Controller) onInteraction(s *Session, key TrackKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Events from a replaced session must not touch the new one.
	if c.session != s || s.closed {
		return
	}
	c.resync(s, key)
}

// TogglePlayback flips the playing flag and drives all three units to the new
// state before returning.
func (c *Controller) TogglePlayback() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		return false, ErrNoSession
	}

	s.playing = !s.playing
	if s.playing {
		s.video.Play()
		for _, key := range Tracks {
			s.track(key).Play()
		}
		c.controls.SetTransport(labelPause, true)
	} else {
		s.video.Pause()
		for _, key := range Tracks {
			s.track(key).Pause()
		}
		c.controls.SetTransport(labelPlay, false)
	}
	return s.playing, nil
}

// ToggleMute flips the mute flag of key's unit and updates its control. The
// label is derived from the flag as it was before the flip.
func (c *Controller) ToggleMute(key TrackKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return false, ErrNoSession
	}

	unit := c.session.track(key)
	wasMuted := unit.Muted()
	label := muteLabel(key, wasMuted)
	outlined := !wasMuted

	unit.SetMuted(!wasMuted)
	c.controls.SetMuteButton(key, label, outlined)
	return !wasMuted, nil
}

// muteLabel maps the pre-toggle flag to the control text: an unmuted track
// becomes "Unmute", a muted one returns to "Mute <name>".
func muteLabel(key TrackKey, wasMuted bool) string {
	if wasMuted {
		return "Mute " + key.Name()
	}
	return labelUnmute
}

// Positions returns the current playhead of each unit.
func (c *Controller) Positions() (Positions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		return Positions{}, ErrNoSession
	}
	return Positions{
		Instrumental: s.track(Instrumental).CurrentTime(),
		Vocal:        s.track(Vocal).CurrentTime(),
		Video:        s.video.CurrentTime(),
		Playing:      s.playing,
	}, nil
}

// Media returns the URLs of the live session.
func (c *Controller) Media() (model.MediaURLs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return model.MediaURLs{}, ErrNoSession
	}
	return c.session.urls, nil
}

// Positions is a snapshot of the three playheads.
type Positions struct {
	Instrumental float64
	Vocal        float64
	Video        float64
	Playing      bool
}
