package media

import (
	"sync"

	"github.com/stemsync/karaoke/internal/playback"
)

// Renderer builds ClockUnits for waveform tracks. Rates maps a container to
// a playback rate so a track can be made to drift on purpose.
type Renderer struct {
	mu    sync.Mutex
	rates map[string]float64
	opts  []Option
	units []*ClockUnit
}

// NewRenderer returns a renderer whose units share opts.
func NewRenderer(rates map[string]float64, opts ...Option) *Renderer {
	return &Renderer{rates: rates, opts: opts}
}

// NewWaveform implements playback.Renderer.
func (r *Renderer) NewWaveform(o playback.WaveformOptions) (playback.WaveformUnit, error) {
	opts := append([]Option{}, r.opts...)
	if rate, ok := r.rates[o.Container]; ok {
		opts = append(opts, WithRate(rate))
	}
	u := NewClockUnit(o.Container, o.URL, opts...)

	r.mu.Lock()
	r.units = append(r.units, u)
	r.mu.Unlock()
	return u, nil
}

// Live returns the units that have not been destroyed, oldest first.
func (r *Renderer) Live() []*ClockUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var live []*ClockUnit
	for _, u := range r.units {
		if !u.Destroyed() {
			live = append(live, u)
		}
	}
	return live
}

// Find returns the live unit rendered into container.
func (r *Renderer) Find(container string) (*ClockUnit, bool) {
	for _, u := range r.Live() {
		if u.Name() == container {
			return u, true
		}
	}
	return nil, false
}
