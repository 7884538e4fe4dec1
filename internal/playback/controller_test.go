package playback

import (
	"errors"
	"testing"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer/timertest"
)

var testURLs = model.MediaURLs{
	Video:        "http://localhost:5000/songs/ab12cd34_karaoke.mp4",
	Instrumental: "http://localhost:5000/songs/ab12cd34_instrumental.wav",
	Vocals:       "http://localhost:5000/songs/ab12cd34_vocals.wav",
}

type harness struct {
	ctrl     *Controller
	renderer *fakeRenderer
	video    *fakeVideo
	controls *fakeControls
	sched    *timertest.Manual
	observer *fakeObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		renderer: &fakeRenderer{},
		video:    &fakeVideo{},
		controls: newFakeControls(),
		sched:    timertest.NewManual(),
		observer: &fakeObserver{},
	}
	h.ctrl = NewController(h.renderer, h.video, h.controls, h.sched, Config{}, WithDriftObserver(h.observer))
	return h
}

func (h *harness) init(t *testing.T) (inst, vocal *fakeWaveform) {
	t.Helper()
	if err := h.ctrl.Initialize(testURLs); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	n := len(h.renderer.created)
	return h.renderer.created[n-2], h.renderer.created[n-1]
}

func TestTrackKey_Other(t *testing.T) {
	if Instrumental.Other() != Vocal {
		t.Errorf("Instrumental.Other() = %v, want vocal", Instrumental.Other())
	}
	if Vocal.Other() != Instrumental {
		t.Errorf("Vocal.Other() = %v, want inst", Vocal.Other())
	}
	for _, k := range Tracks {
		if k.Other().Other() != k {
			t.Errorf("%v.Other().Other() = %v", k, k.Other().Other())
		}
	}
}

func TestParseTrackKey(t *testing.T) {
	cases := map[string]TrackKey{"inst": Instrumental, "instrumental": Instrumental, "vocal": Vocal, "vocals": Vocal}
	for in, want := range cases {
		got, ok := ParseTrackKey(in)
		if !ok || got != want {
			t.Errorf("ParseTrackKey(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseTrackKey("drums"); ok {
		t.Error("ParseTrackKey(drums) should fail")
	}
}

func TestInitialize_BuildsSession(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)

	if h.video.url != testURLs.Video {
		t.Errorf("video url = %q, want %q", h.video.url, testURLs.Video)
	}
	if inst.opts.URL != testURLs.Instrumental || inst.opts.Container != "#waveform-inst" || inst.opts.WaveColor != "#3273dc" {
		t.Errorf("unexpected instrumental options: %+v", inst.opts)
	}
	if vocal.opts.URL != testURLs.Vocals || vocal.opts.Container != "#waveform-vocal" || vocal.opts.WaveColor != "#ff3860" {
		t.Errorf("unexpected vocal options: %+v", vocal.opts)
	}
	if inst.opts.Height != DefaultWaveformHeight || !inst.opts.Interactive {
		t.Errorf("expected height %d and interactive, got %+v", DefaultWaveformHeight, inst.opts)
	}
	if len(inst.handlers) != 1 || len(vocal.handlers) != 1 {
		t.Errorf("expected one interaction handler per track, got %d and %d", len(inst.handlers), len(vocal.handlers))
	}
	if len(h.controls.results) != 1 {
		t.Errorf("expected results shown once, got %d", len(h.controls.results))
	}
	if h.controls.transport != "Play" {
		t.Errorf("transport label = %q, want Play", h.controls.transport)
	}
	if h.controls.mute[Instrumental].label != "Mute Inst" || h.controls.mute[Vocal].label != "Mute Vocal" {
		t.Errorf("unexpected mute labels: %+v", h.controls.mute)
	}
	task := h.sched.Last()
	if task == nil || task.Interval != DefaultDriftInterval {
		t.Fatalf("expected drift sweep every %v, got %+v", DefaultDriftInterval, task)
	}
	if h.ctrl.IsPlaying() {
		t.Error("new session should be paused")
	}
}

func TestInitialize_ReplacesPreviousSession(t *testing.T) {
	h := newHarness(t)
	oldInst, oldVocal := h.init(t)
	oldSweep := h.sched.Last()
	if _, err := h.ctrl.TogglePlayback(); err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}

	newInst, newVocal := h.init(t)

	if !oldInst.destroyed || !oldVocal.destroyed {
		t.Error("previous waveform units must be destroyed")
	}
	if !oldSweep.Stopped() {
		t.Error("previous drift sweep must be stopped")
	}
	if newInst.destroyed || newVocal.destroyed {
		t.Error("new units must be live")
	}
	if len(h.renderer.created) != 4 {
		t.Errorf("expected 4 units created across two sessions, got %d", len(h.renderer.created))
	}
	if h.ctrl.IsPlaying() {
		t.Error("replacement session should start paused")
	}

	// A late interaction on the destroyed unit must not move the new session.
	newInst.time = 3
	oldInst.seek(42)
	if newVocal.time != 0 || h.video.time != 0 {
		t.Errorf("stale interaction leaked: vocal=%v video=%v", newVocal.time, h.video.time)
	}
}

func TestInitialize_WaveformFailureReleasesPartialUnits(t *testing.T) {
	h := newHarness(t)
	h.renderer.failOn = 2

	err := h.ctrl.Initialize(testURLs)
	if err == nil {
		t.Fatal("expected error when second waveform fails")
	}
	if !h.renderer.created[0].destroyed {
		t.Error("first waveform should be destroyed on failure")
	}
	if _, err := h.ctrl.TogglePlayback(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after failed init, got %v", err)
	}
}

func TestInitialize_VideoLoadFailure(t *testing.T) {
	h := newHarness(t)
	h.video.loadErr = errors.New("unsupported codec")

	if err := h.ctrl.Initialize(testURLs); err == nil {
		t.Fatal("expected error on video load failure")
	}
	if len(h.renderer.created) != 0 {
		t.Errorf("no waveform should be created, got %d", len(h.renderer.created))
	}
}

func TestOperations_BeforeInitialize(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.ResyncFrom(Instrumental); !errors.Is(err, ErrNoSession) {
		t.Errorf("ResyncFrom: expected ErrNoSession, got %v", err)
	}
	if _, err := h.ctrl.TogglePlayback(); !errors.Is(err, ErrNoSession) {
		t.Errorf("TogglePlayback: expected ErrNoSession, got %v", err)
	}
	if _, err := h.ctrl.ToggleMute(Vocal); !errors.Is(err, ErrNoSession) {
		t.Errorf("ToggleMute: expected ErrNoSession, got %v", err)
	}
	if _, err := h.ctrl.Positions(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Positions: expected ErrNoSession, got %v", err)
	}
}

func TestResyncFrom_Instrumental(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)
	inst.time = 12.34
	vocal.time = 5
	h.video.time = 7

	if err := h.ctrl.ResyncFrom(Instrumental); err != nil {
		t.Fatalf("ResyncFrom: %v", err)
	}
	if vocal.time != 12.34 || h.video.time != 12.34 {
		t.Errorf("expected vocal and video at 12.34, got vocal=%v video=%v", vocal.time, h.video.time)
	}
	if inst.time != 12.34 {
		t.Errorf("master must not move, got %v", inst.time)
	}
}

func TestResyncFrom_Vocal(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)
	inst.time = 30
	vocal.time = 8.5
	h.video.time = 31

	if err := h.ctrl.ResyncFrom(Vocal); err != nil {
		t.Fatalf("ResyncFrom: %v", err)
	}
	if inst.time != 8.5 || h.video.time != 8.5 {
		t.Errorf("expected inst and video at 8.5, got inst=%v video=%v", inst.time, h.video.time)
	}
}

func TestInteraction_TriggersResync(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)

	vocal.seek(64)
	if inst.time != 64 || h.video.time != 64 {
		t.Errorf("seek on vocal: expected inst and video at 64, got inst=%v video=%v", inst.time, h.video.time)
	}

	inst.seek(10)
	if vocal.time != 10 || h.video.time != 10 {
		t.Errorf("seek on inst: expected vocal and video at 10, got vocal=%v video=%v", vocal.time, h.video.time)
	}
}

func TestTogglePlayback(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)

	playing, err := h.ctrl.TogglePlayback()
	if err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}
	if !playing || !inst.playing || !vocal.playing || !h.video.playing {
		t.Errorf("expected all units playing: flag=%v inst=%v vocal=%v video=%v", playing, inst.playing, vocal.playing, h.video.playing)
	}
	if h.controls.transport != "Pause" || !h.controls.playing {
		t.Errorf("transport = %q/%v, want Pause/true", h.controls.transport, h.controls.playing)
	}

	playing, err = h.ctrl.TogglePlayback()
	if err != nil {
		t.Fatalf("TogglePlayback: %v", err)
	}
	if playing || inst.playing || vocal.playing || h.video.playing {
		t.Errorf("expected all units paused: flag=%v inst=%v vocal=%v video=%v", playing, inst.playing, vocal.playing, h.video.playing)
	}
	if h.controls.transport != "Play" || h.controls.playing {
		t.Errorf("transport = %q/%v, want Play/false", h.controls.transport, h.controls.playing)
	}
}

func TestToggleMute_LabelFromPreviousFlag(t *testing.T) {
	h := newHarness(t)
	inst, _ := h.init(t)

	muted, err := h.ctrl.ToggleMute(Instrumental)
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if !muted || !inst.muted {
		t.Errorf("expected instrumental muted, got flag=%v unit=%v", muted, inst.muted)
	}
	btn := h.controls.mute[Instrumental]
	if btn.label != "Unmute" || !btn.outlined {
		t.Errorf("after first toggle: %+v, want Unmute/outlined", btn)
	}

	muted, err = h.ctrl.ToggleMute(Instrumental)
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if muted || inst.muted {
		t.Errorf("expected instrumental unmuted, got flag=%v unit=%v", muted, inst.muted)
	}
	btn = h.controls.mute[Instrumental]
	if btn.label != "Mute Inst" || btn.outlined {
		t.Errorf("after second toggle: %+v, want Mute Inst/plain", btn)
	}

	if h.controls.mute[Vocal].label != "Mute Vocal" {
		t.Errorf("vocal control must be untouched, got %+v", h.controls.mute[Vocal])
	}
}

func TestToggleMute_ReadsFlagFromUnit(t *testing.T) {
	h := newHarness(t)
	_, vocal := h.init(t)
	vocal.muted = true // muted outside the controller

	muted, err := h.ctrl.ToggleMute(Vocal)
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if muted || vocal.muted {
		t.Error("expected vocal to be unmuted")
	}
	if got := h.controls.mute[Vocal].label; got != "Mute Vocal" {
		t.Errorf("label = %q, want Mute Vocal", got)
	}
}

func TestClose_ReleasesSession(t *testing.T) {
	h := newHarness(t)
	inst, vocal := h.init(t)
	sweep := h.sched.Last()

	h.ctrl.Close()
	h.ctrl.Close()

	if !inst.destroyed || !vocal.destroyed {
		t.Error("units must be destroyed on Close")
	}
	if sweep.StopCalls() != 1 {
		t.Errorf("sweep stopped %d times, want 1", sweep.StopCalls())
	}
	if _, err := h.ctrl.Media(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after Close, got %v", err)
	}
}

func TestMedia(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	got, err := h.ctrl.Media()
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if got != testURLs {
		t.Errorf("Media() = %+v, want %+v", got, testURLs)
	}
}
