package playback

import "github.com/stemsync/karaoke/internal/model"

// Unit is the transport surface shared by waveform and video units.
// Times are in seconds.
type Unit interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
}

// WaveformUnit is an audio-bearing waveform renderer.
//
// OnInteraction handlers fire only when the user seeks inside the rendering,
// never from SetCurrentTime, and must be invoked without holding unit locks.
type WaveformUnit interface {
	Unit
	Muted() bool
	SetMuted(muted bool)
	OnInteraction(fn func())
	Destroy()
}

// VideoUnit is the single video element reused across sessions.
type VideoUnit interface {
	Unit
	Load(url string) error
}

// WaveformOptions configures a new waveform unit.
type WaveformOptions struct {
	Container     string
	WaveColor     string
	ProgressColor string
	URL           string
	Height        int
	Interactive   bool
}

// Renderer constructs waveform units.
type Renderer interface {
	NewWaveform(opts WaveformOptions) (WaveformUnit, error)
}

// Controls is the user-facing surface the controller keeps in step with the
// session: results region, the shared transport button and the per-track
// mute buttons.
type Controls interface {
	ShowResults(urls model.MediaURLs)
	SetTransport(label string, playing bool)
	SetMuteButton(key TrackKey, label string, outlined bool)
}

// DriftObserver is notified of every drift correction.
type DriftObserver interface {
	ObserveDriftCorrection(kind string, drift float64)
}
