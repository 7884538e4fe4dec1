package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/stemsync/karaoke/internal/media"
	"github.com/stemsync/karaoke/internal/metrics"
	"github.com/stemsync/karaoke/internal/playback"
	"github.com/stemsync/karaoke/internal/timer"
)

// player bundles the playback controller with its headless units.
type player struct {
	ctrl    *playback.Controller
	sched   timer.Scheduler
	units   *media.Renderer
	video   *media.ClockUnit
	term    *Terminal
	metrics *http.Server
	log     *slog.Logger
}

// newPlayer builds a controller over clock-driven units. A vocalRate other
// than 1 makes the vocal track run fast or slow so the drift corrector has
// something to do.
func (a *app) newPlayer(vocalRate float64) *player {
	term := NewTerminal(a.out)

	rates := map[string]float64{}
	if vocalRate > 0 && vocalRate != 1 {
		rates[playback.Vocal.Container()] = vocalRate
	}
	units := media.NewRenderer(rates)
	video := media.NewClockUnit("video", "")

	opts := []playback.Option{playback.WithLogger(a.log)}

	p := &player{sched: timer.NewTickerScheduler(), units: units, video: video, term: term, log: a.log}
	if addr := a.cfg.Client.MetricsAddr; addr != "" {
		m := metrics.New()
		opts = append(opts, playback.WithDriftObserver(m))
		p.metrics = &http.Server{Addr: addr, Handler: m.Handler()}
		go func() {
			if err := p.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	p.ctrl = playback.NewController(units, video, term, p.sched, playback.Config{
		DriftInterval:  a.cfg.Client.DriftInterval,
		DriftTolerance: a.cfg.Client.DriftTolerance,
		WaveformHeight: a.cfg.Client.WaveformHeight,
	}, opts...)
	return p
}

func (p *player) close() {
	p.ctrl.Close()
	if p.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		p.metrics.Shutdown(ctx)
	}
}
