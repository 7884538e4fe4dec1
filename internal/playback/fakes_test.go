package playback

import (
	"errors"
	"sync"

	"github.com/stemsync/karaoke/internal/model"
)

type fakeWaveform struct {
	opts      WaveformOptions
	time      float64
	playing   bool
	muted     bool
	destroyed bool
	handlers  []func()
}

func (w *fakeWaveform) Play() { w.playing = true }
func (w *fakeWaveform) Pause() { w.playing = false }
func (w *fakeWaveform) CurrentTime() float64 { return w.time }
func (w *fakeWaveform) SetCurrentTime(t float64) { w.time = t }
func (w *fakeWaveform) Muted() bool { return w.muted }
func (w *fakeWaveform) SetMuted(m bool) { w.muted = m }
func (w *fakeWaveform) OnInteraction(fn func()) { w.handlers = append(w.handlers, fn) }
func (w *fakeWaveform) Destroy() { w.destroyed = true }

// seek simulates the user clicking inside the waveform.
func (w *fakeWaveform) seek(t float64) {
	w.time = t
	for _, h := range w.handlers {
		h()
	}
}

type fakeVideo struct {
	url     string
	time    float64
	playing bool
	loadErr error
}

func (v *fakeVideo) Play() { v.playing = true }
func (v *fakeVideo) Pause() { v.playing = false }
func (v *fakeVideo) CurrentTime() float64 { return v.time }
func (v *fakeVideo) SetCurrentTime(t float64) { v.time = t }
func (v *fakeVideo) Load(url string) error {
	if v.loadErr != nil {
		return v.loadErr
	}
	v.url = url
	v.time = 0
	return nil
}

type fakeRenderer struct {
	created []*fakeWaveform
	failOn  int // 1-based index of the NewWaveform call that fails; 0 never
}

func (r *fakeRenderer) NewWaveform(opts WaveformOptions) (WaveformUnit, error) {
	if r.failOn != 0 && len(r.created)+1 == r.failOn {
		return nil, errors.New("decode failed")
	}
	w := &fakeWaveform{opts: opts}
	r.created = append(r.created, w)
	return w, nil
}

type muteButton struct {
	label    string
	outlined bool
}

type fakeControls struct {
	mu        sync.Mutex
	results   []model.MediaURLs
	transport string
	playing   bool
	mute      map[TrackKey]muteButton
}

func newFakeControls() *fakeControls {
	return &fakeControls{mute: make(map[TrackKey]muteButton)}
}

func (c *fakeControls) ShowResults(urls model.MediaURLs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, urls)
}

func (c *fakeControls) SetTransport(label string, playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = label
	c.playing = playing
}

func (c *fakeControls) SetMuteButton(key TrackKey, label string, outlined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mute[key] = muteButton{label: label, outlined: outlined}
}

type fakeObserver struct {
	kinds []string
}

func (o *fakeObserver) ObserveDriftCorrection(kind string, drift float64) {
	o.kinds = append(o.kinds, kind)
}
