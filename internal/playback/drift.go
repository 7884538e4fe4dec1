package playback

import (
	"log/slog"
	"math"
)

// Drift correction kinds reported to the DriftObserver.
const (
	DriftKindAudio = "audio"
	DriftKindVideo = "video"
)

// DriftReport describes one sweep.
type DriftReport struct {
	Skipped        bool
	AudioDrift     float64
	VideoDrift     float64
	AudioCorrected bool
	VideoCorrected bool
}

// CorrectDrift runs one sweep synchronously. The sweep is skipped while
// paused or before both audio units exist.
func (c *Controller) CorrectDrift() DriftReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correctDrift(c.session)
}

func (c *Controller) sweepTick(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	c.correctDrift(s)
}

// correctDrift snaps followers to the instrumental clock. Audio drift is
// checked first; a video snap from that step counts for the video check too.
func (c *Controller) correctDrift(s *Session) DriftReport {
	if s == nil || s.closed || !s.playing || !s.ready() {
		return DriftReport{Skipped: true}
	}

	var r DriftReport
	inst := s.track(Instrumental).CurrentTime()
	vocal := s.track(Vocal)

	r.AudioDrift = math.Abs(inst - vocal.CurrentTime())
	if r.AudioDrift > c.cfg.DriftTolerance {
		vocal.SetCurrentTime(inst)
		s.video.SetCurrentTime(inst)
		r.AudioCorrected = true
		r.VideoCorrected = true
		c.observe(DriftKindAudio, r.AudioDrift)
		return r
	}

	r.VideoDrift = math.Abs(inst - s.video.CurrentTime())
	if r.VideoDrift > c.cfg.DriftTolerance {
		s.video.SetCurrentTime(inst)
		r.VideoCorrected = true
		c.observe(DriftKindVideo, r.VideoDrift)
	}
	return r
}

func (c *Controller) observe(kind string, drift float64) {
	c.log.Debug("drift corrected", slog.String("kind", kind), slog.Float64("drift", drift))
	if c.observer != nil {
		c.observer.ObserveDriftCorrection(kind, drift)
	}
}
