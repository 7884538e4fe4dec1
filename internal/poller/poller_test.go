package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer/timertest"
)

type fakeAPI struct {
	mu          sync.Mutex
	submits     []string
	statusCalls int
	jobID       string
	submitErr   error
	responses   []*model.StatusResponse
	statusErr   error
	// onStatus runs inside Status before it returns.
	onStatus func()
}

func (a *fakeAPI) Submit(ctx context.Context, sourceURL string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submits = append(a.submits, sourceURL)
	return a.jobID, a.submitErr
}

func (a *fakeAPI) Status(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	a.mu.Lock()
	a.statusCalls++
	var resp *model.StatusResponse
	if len(a.responses) > 0 {
		resp = a.responses[0]
		if len(a.responses) > 1 {
			a.responses = a.responses[1:]
		}
	}
	err := a.statusErr
	hook := a.onStatus
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	return resp, err
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusCalls
}

type event struct {
	kind string
	text string
}

type fakeView struct {
	mu     sync.Mutex
	events []event
	busy   bool
	status string
	shown  bool
}

func (v *fakeView) record(kind, text string) {
	v.events = append(v.events, event{kind: kind, text: text})
}

func (v *fakeView) ShowStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status, v.shown = text, true
	v.record("status", text)
}

func (v *fakeView) HideStatus() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shown = false
	v.record("hide", "")
}

func (v *fakeView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = busy
}

func (v *fakeView) ShowError(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record("error", message)
}

func (v *fakeView) errors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, e := range v.events {
		if e.kind == "error" {
			out = append(out, e.text)
		}
	}
	return out
}

var completeResp = &model.StatusResponse{
	JobID:  "ab12cd34",
	Status: model.JobStatusComplete,
	Data: &model.MediaURLs{
		Video:        "http://localhost:5000/songs/ab12cd34_karaoke.mp4",
		Instrumental: "http://localhost:5000/songs/ab12cd34_instrumental.wav",
		Vocals:       "http://localhost:5000/songs/ab12cd34_vocals.wav",
	},
}

type setup struct {
	api     *fakeAPI
	view    *fakeView
	sched   *timertest.Manual
	results []model.MediaURLs
	p       *Poller
}

func newSetup(responses ...*model.StatusResponse) *setup {
	s := &setup{
		api:   &fakeAPI{jobID: "ab12cd34", responses: responses},
		view:  &fakeView{},
		sched: timertest.NewManual(),
	}
	s.p = New(s.api, s.view, s.sched, func(u model.MediaURLs) error {
		s.results = append(s.results, u)
		return nil
	})
	return s
}

func TestSubmit_EmptyURL(t *testing.T) {
	for _, in := range []string{"", "   "} {
		s := newSetup()
		h, err := s.p.Submit(context.Background(), in)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Submit(%q): expected ValidationError, got %v", in, err)
		}
		if h != nil {
			t.Error("expected nil handle")
		}
		if len(s.api.submits) != 0 {
			t.Errorf("no request should be issued, got %d", len(s.api.submits))
		}
		if errs := s.view.errors(); len(errs) != 1 || errs[0] != DefaultMessages().EmptyURL {
			t.Errorf("expected validation message, got %v", errs)
		}
		if s.view.busy {
			t.Error("busy flag must not be set")
		}
	}
}

func TestStart_SubmitsOnceAndShowsStatusBeforePolling(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusProcessing})

	h, err := s.p.Start(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(s.api.submits) != 1 {
		t.Fatalf("expected exactly one submit, got %d", len(s.api.submits))
	}
	if h.ID != "ab12cd34" {
		t.Errorf("handle id = %q", h.ID)
	}
	if !s.view.shown || !s.view.busy {
		t.Errorf("status must be visible and busy before first tick: shown=%v busy=%v", s.view.shown, s.view.busy)
	}
	if s.api.calls() != 0 {
		t.Errorf("no status request before first tick, got %d", s.api.calls())
	}
	if task := s.sched.Last(); task == nil || task.Interval != DefaultInterval {
		t.Errorf("expected poll task every %v, got %+v", DefaultInterval, task)
	}
}

func TestSubmit_Failure(t *testing.T) {
	s := newSetup()
	s.api.submitErr = errors.New("connection refused")

	_, err := s.p.Start(context.Background(), "https://youtu.be/x")

	var sErr *SubmissionError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if s.view.busy {
		t.Error("busy flag must be cleared")
	}
	if len(s.view.errors()) != 1 {
		t.Errorf("expected the failure to be shown, got %v", s.view.errors())
	}
	if len(s.sched.Tasks()) != 0 {
		t.Error("no poll task should be started")
	}
}

func TestSubmit_MissingJobID(t *testing.T) {
	s := newSetup()
	s.api.jobID = ""

	_, err := s.p.Submit(context.Background(), "https://youtu.be/x")
	var sErr *SubmissionError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestPoll_NonTerminalStatuses(t *testing.T) {
	s := newSetup(
		&model.StatusResponse{Status: model.JobStatusWaiting, Position: 3},
		&model.StatusResponse{Status: model.JobStatusProcessing, Step: model.StepSeparating},
		&model.StatusResponse{Status: model.JobStatusProcessing},
	)
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.sched.Tick()
	if s.view.status != "Waiting in queue, position 3" {
		t.Errorf("waiting status = %q", s.view.status)
	}
	if h.Status() != model.JobStatusWaiting {
		t.Errorf("handle status = %v, want waiting", h.Status())
	}

	s.sched.Tick()
	if s.view.status != "Status: "+model.StepSeparating {
		t.Errorf("processing status = %q", s.view.status)
	}

	s.sched.Tick()
	if s.view.status != "Processing..." {
		t.Errorf("processing status = %q", s.view.status)
	}
	if s.sched.Last().Stopped() {
		t.Error("poll task must keep running on non-terminal statuses")
	}
}

func TestPoll_WaitingWithoutPosition(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusWaiting, Step: model.StepQueued})
	if _, err := s.p.Start(context.Background(), "https://youtu.be/x"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.sched.Tick()
	if s.view.status != "Status: Queued" {
		t.Errorf("status = %q", s.view.status)
	}
}

func TestPoll_CompleteStopsPollingOnce(t *testing.T) {
	s := newSetup(completeResp)
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	task := s.sched.Last()

	task.Fire()

	if task.StopCalls() != 1 {
		t.Errorf("poll task stopped %d times, want 1", task.StopCalls())
	}
	if len(s.results) != 1 || s.results[0] != *completeResp.Data {
		t.Errorf("results = %+v", s.results)
	}
	if s.view.shown || s.view.busy {
		t.Errorf("status must be hidden and busy cleared: shown=%v busy=%v", s.view.shown, s.view.busy)
	}

	// A tick that was already queued when the timer was cancelled.
	task.Fire()
	task.Fire()

	if s.api.calls() != 1 {
		t.Errorf("status requests after completion: got %d calls, want 1", s.api.calls())
	}
	if len(s.results) != 1 {
		t.Errorf("result handed off %d times, want 1", len(s.results))
	}
	if task.StopCalls() != 1 {
		t.Errorf("poll task stopped %d times, want 1", task.StopCalls())
	}

	urls, err := h.Wait(context.Background())
	if err != nil || urls != *completeResp.Data {
		t.Errorf("Wait = %+v, %v", urls, err)
	}
}

func TestPoll_ErrorStatus(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusError, Error: "Error: yt-dlp exited with status 1"})
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	task := s.sched.Last()

	task.Fire()
	task.Fire()

	if s.api.calls() != 1 {
		t.Errorf("status requests = %d, want 1", s.api.calls())
	}
	if task.StopCalls() != 1 {
		t.Errorf("poll task stopped %d times, want 1", task.StopCalls())
	}
	if s.view.busy {
		t.Error("busy flag must be cleared")
	}
	if errs := s.view.errors(); len(errs) != 1 || errs[0] != "Error: yt-dlp exited with status 1" {
		t.Errorf("errors shown = %v", errs)
	}
	if len(s.results) != 0 {
		t.Error("no result should be handed off")
	}

	_, err = h.Wait(context.Background())
	var jErr *JobError
	if !errors.As(err, &jErr) || jErr.Message != "Error: yt-dlp exited with status 1" {
		t.Errorf("Wait error = %v", err)
	}
}

func TestPoll_RequestFailureIsTerminal(t *testing.T) {
	s := newSetup()
	s.api.statusErr = errors.New("status 502")
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.sched.Tick()
	s.sched.Last().Fire()

	if s.api.calls() != 1 {
		t.Errorf("status requests = %d, want 1 (no retry)", s.api.calls())
	}
	if h.Status() != model.JobStatusError {
		t.Errorf("status = %v, want error", h.Status())
	}
	if errs := s.view.errors(); len(errs) != 1 || errs[0] != DefaultMessages().PollFailed {
		t.Errorf("errors shown = %v", errs)
	}
}

func TestPoll_CompleteWithoutMedia(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusComplete})
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.sched.Tick()

	if h.Status() != model.JobStatusError {
		t.Errorf("status = %v, want error", h.Status())
	}
	if len(s.results) != 0 {
		t.Error("incomplete payload must not reach the result handler")
	}
}

func TestPoll_ResponseAfterCancellationIgnored(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusProcessing, Step: model.StepMerging})
	h, err := s.p.Start(context.Background(), "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The user abandons the job while the request is in flight.
	s.api.onStatus = func() { s.p.Cancel(h) }

	s.sched.Tick()

	if strings.Contains(s.view.status, model.StepMerging) {
		t.Errorf("late response updated the view: %q", s.view.status)
	}
	if _, err := h.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	s := newSetup(&model.StatusResponse{Status: model.JobStatusProcessing})
	ctx, cancel := context.WithCancel(context.Background())
	h, err := s.p.Start(ctx, "https://youtu.be/x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	s.sched.Tick()

	if s.api.calls() != 0 {
		t.Errorf("no request after cancellation, got %d", s.api.calls())
	}
	if !s.sched.Last().Stopped() {
		t.Error("poll task must be stopped")
	}
	select {
	case <-h.Done():
	default:
		t.Error("handle should be done")
	}
}

func TestPoll_ResultHandlerError(t *testing.T) {
	s := newSetup(completeResp)
	s.p = New(s.api, s.view, s.sched, func(model.MediaURLs) error {
		return errors.New("decoder unavailable")
	}, WithInterval(2500*time.Millisecond))

	if _, err := s.p.Start(context.Background(), "https://youtu.be/x"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.sched.Last().Interval.Milliseconds(); got != 2500 {
		t.Errorf("interval = %dms, want 2500", got)
	}
	s.sched.Tick()

	if errs := s.view.errors(); len(errs) != 1 || errs[0] != "decoder unavailable" {
		t.Errorf("errors shown = %v", errs)
	}
}

func TestResume_PollsWithoutSubmitting(t *testing.T) {
	s := newSetup(completeResp)

	h, err := s.p.Resume(context.Background(), " ab12cd34 ")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if h.ID != "ab12cd34" {
		t.Errorf("handle id = %q", h.ID)
	}
	if len(s.api.submits) != 0 {
		t.Errorf("resume must not submit, got %d", len(s.api.submits))
	}
	if !s.view.shown || !s.view.busy {
		t.Error("status should be visible while resuming")
	}

	s.sched.Last().Fire()

	if len(s.results) != 1 {
		t.Errorf("results = %+v", s.results)
	}
}

func TestResume_EmptyID(t *testing.T) {
	s := newSetup()

	_, err := s.p.Resume(context.Background(), "")

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if s.sched.Last() != nil {
		t.Error("no poll task should start")
	}
}
