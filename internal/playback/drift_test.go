package playback

import (
	"testing"
)

func playingHarness(t *testing.T) (*harness, *fakeWaveform, *fakeWaveform) {
	t.Helper()
	h := newHarness(t)
	inst, vocal := h.init(t)
	if _, err := h.ctrl.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}
	return h, inst, vocal
}

func TestCorrectDrift_AudioBeyondTolerance(t *testing.T) {
	h, inst, vocal := playingHarness(t)
	inst.time = 10.00
	vocal.time = 9.80
	h.video.time = 9.95

	r := h.ctrl.CorrectDrift()

	if vocal.time != 10.00 || h.video.time != 10.00 {
		t.Errorf("expected vocal and video snapped to 10.00, got vocal=%v video=%v", vocal.time, h.video.time)
	}
	if !r.AudioCorrected || !r.VideoCorrected {
		t.Errorf("unexpected report: %+v", r)
	}
	if len(h.observer.kinds) != 1 || h.observer.kinds[0] != DriftKindAudio {
		t.Errorf("expected one audio correction observed, got %v", h.observer.kinds)
	}
}

func TestCorrectDrift_AudioWithinTolerance(t *testing.T) {
	h, inst, vocal := playingHarness(t)
	inst.time = 10.00
	vocal.time = 10.05
	h.video.time = 10.02

	r := h.ctrl.CorrectDrift()

	if vocal.time != 10.05 {
		t.Errorf("vocal must be unchanged, got %v", vocal.time)
	}
	if h.video.time != 10.02 {
		t.Errorf("video must be unchanged, got %v", h.video.time)
	}
	if r.AudioCorrected || r.VideoCorrected || r.Skipped {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestCorrectDrift_VideoOnly(t *testing.T) {
	h, inst, vocal := playingHarness(t)
	inst.time = 20
	vocal.time = 20
	h.video.time = 19.5

	r := h.ctrl.CorrectDrift()

	if h.video.time != 20 {
		t.Errorf("video should snap to 20, got %v", h.video.time)
	}
	if r.AudioCorrected || !r.VideoCorrected {
		t.Errorf("unexpected report: %+v", r)
	}
	if len(h.observer.kinds) != 1 || h.observer.kinds[0] != DriftKindVideo {
		t.Errorf("expected one video correction observed, got %v", h.observer.kinds)
	}
}

func TestCorrectDrift_InstrumentalIsReference(t *testing.T) {
	h, inst, vocal := playingHarness(t)
	inst.time = 5
	vocal.time = 6

	h.ctrl.CorrectDrift()

	if inst.time != 5 {
		t.Errorf("instrumental must never be moved by the sweep, got %v", inst.time)
	}
	if vocal.time != 5 {
		t.Errorf("vocal should follow instrumental, got %v", vocal.time)
	}
}

func TestCorrectDrift_SkippedWhilePaused(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)
	inst.time = 10
	vocal.time = 2

	r := h.ctrl.CorrectDrift()

	if !r.Skipped {
		t.Error("sweep should be skipped while paused")
	}
	if vocal.time != 2 {
		t.Errorf("vocal must be unchanged while paused, got %v", vocal.time)
	}
}

func TestCorrectDrift_SkippedWithoutSession(t *testing.T) {
	h := newHarness(t)
	if r := h.ctrl.CorrectDrift(); !r.Skipped {
		t.Error("sweep should be skipped before initialization")
	}
}

func TestSweepTick_DrivenByScheduler(t *testing.T) {
	h, inst, vocal := playingHarness(t)
	inst.time = 42
	vocal.time = 41

	h.sched.Tick()

	if vocal.time != 42 || h.video.time != 42 {
		t.Errorf("tick should correct drift, got vocal=%v video=%v", vocal.time, h.video.time)
	}
}

func TestSweepTick_StaleSessionIgnored(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	oldSweep := h.sched.Last()

	inst, vocal := h.init(t)
	if _, err := h.ctrl.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}
	inst.time = 10
	vocal.time = 3

	// A tick queued before the replacement fires late.
	oldSweep.Fire()

	if vocal.time != 3 {
		t.Errorf("stale sweep must not touch the new session, vocal=%v", vocal.time)
	}
}
