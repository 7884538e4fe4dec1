// Package poller submits separation jobs and follows them to a terminal
// state on a fixed polling cadence.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer"
)

// DefaultInterval is the default status polling cadence.
const DefaultInterval = time.Second

// StatusAPI is the remote processing service.
type StatusAPI interface {
	Submit(ctx context.Context, sourceURL string) (string, error)
	Status(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

// View is the status surface: one status label, a busy indicator and an
// error channel to the user.
type View interface {
	ShowStatus(text string)
	HideStatus()
	SetBusy(busy bool)
	ShowError(message string)
}

// ResultHandler receives the media of a completed job.
type ResultHandler func(model.MediaURLs) error

// Poller drives the job lifecycle.
type Poller struct {
	api      StatusAPI
	view     View
	sched    timer.Scheduler
	interval time.Duration
	onResult ResultHandler
	messages Messages
	log      *slog.Logger
}

// Option customizes a Poller.
type Option func(*Poller)

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMessages replaces the status strings.
func WithMessages(m Messages) Option {
	return func(p *Poller) { p.messages = m }
}

// WithLogger sets the poller logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// New returns a Poller. onResult is typically the playback controller's
// Initialize.
func New(api StatusAPI, view View, sched timer.Scheduler, onResult ResultHandler, opts ...Option) *Poller {
	p := &Poller{
		api:      api,
		view:     view,
		sched:    sched,
		interval: DefaultInterval,
		onResult: onResult,
		messages: DefaultMessages(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates sourceURL and issues exactly one submit request. The
// status region is visible before this returns.
func (p *Poller) Submit(ctx context.Context, sourceURL string) (*JobHandle, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		p.view.ShowError(p.messages.EmptyURL)
		return nil, &ValidationError{Field: "url", Message: "must not be empty"}
	}

	p.view.SetBusy(true)
	p.view.ShowStatus(p.messages.Submitted)

	jobID, err := p.api.Submit(ctx, sourceURL)
	if err == nil && jobID == "" {
		err = errors.New("no job id in response")
	}
	if err != nil {
		p.log.Error("submit failed", slog.String("url", sourceURL), slog.Any("error", err))
		p.view.HideStatus()
		p.view.SetBusy(false)
		p.view.ShowError(err.Error())
		return nil, &SubmissionError{Err: err}
	}

	p.log.Info("job submitted", slog.String("job_id", jobID), slog.String("url", sourceURL))
	return newJobHandle(jobID), nil
}

// Poll starts the repeating status task for h.
func (p *Poller) Poll(ctx context.Context, h *JobHandle) {
	task := p.sched.Every(p.interval, func() { p.tick(ctx, h) })
	h.setTask(task)
}

// Start submits sourceURL and begins polling it.
func (p *Poller) Start(ctx context.Context, sourceURL string) (*JobHandle, error) {
	h, err := p.Submit(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	p.Poll(ctx, h)
	return h, nil
}

// Resume attaches to a job submitted earlier and begins polling it. No
// submit request is made.
func (p *Poller) Resume(ctx context.Context, jobID string) (*JobHandle, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		p.view.ShowError("Please provide a job id")
		return nil, &ValidationError{Field: "job_id", Message: "must not be empty"}
	}

	p.view.SetBusy(true)
	p.view.ShowStatus(p.messages.Processing)

	h := newJobHandle(jobID)
	p.Poll(ctx, h)
	return h, nil
}

// Cancel abandons h locally. The remote job is not affected.
func (p *Poller) Cancel(h *JobHandle) {
	if h.finish(h.Status(), model.MediaURLs{}, context.Canceled) {
		p.view.HideStatus()
		p.view.SetBusy(false)
		h.release()
	}
}

func (p *Poller) tick(ctx context.Context, h *JobHandle) {
	if ctx.Err() != nil {
		p.Cancel(h)
		return
	}
	if !h.beginPoll() {
		return
	}

	resp, err := p.api.Status(ctx, h.ID)
	if err == nil && resp == nil {
		err = errors.New("empty status response")
	}
	if h.isFinished() {
		return
	}
	if err != nil {
		p.log.Warn("status request failed", slog.String("job_id", h.ID), slog.Any("error", err))
		p.fail(h, p.messages.PollFailed, err)
		return
	}

	switch resp.Status {
	case model.JobStatusComplete:
		p.complete(h, resp)
	case model.JobStatusError:
		msg := resp.Error
		if msg == "" {
			msg = p.messages.PollFailed
		}
		p.fail(h, msg, nil)
	case model.JobStatusSubmitted, model.JobStatusWaiting, model.JobStatusProcessing:
		h.observe(resp.Status)
		p.view.ShowStatus(p.messages.statusText(resp))
	default:
		p.fail(h, p.messages.PollFailed, errors.New("unknown status "+string(resp.Status)))
	}
}

func (p *Poller) complete(h *JobHandle, resp *model.StatusResponse) {
	if resp.Data == nil || resp.Data.Video == "" || resp.Data.Instrumental == "" || resp.Data.Vocals == "" {
		p.fail(h, p.messages.MissingMedia, nil)
		return
	}
	urls := *resp.Data
	if !h.finish(model.JobStatusComplete, urls, nil) {
		return
	}

	p.log.Info("job complete", slog.String("job_id", h.ID), slog.Int("polls", h.Polls()))
	p.view.HideStatus()
	p.view.SetBusy(false)
	if p.onResult != nil {
		if err := p.onResult(urls); err != nil {
			p.log.Error("failed to present results", slog.String("job_id", h.ID), slog.Any("error", err))
			p.view.ShowError(err.Error())
		}
	}
	h.release()
}

func (p *Poller) fail(h *JobHandle, msg string, cause error) {
	jobErr := &JobError{JobID: h.ID, Message: msg, Err: cause}
	if !h.finish(model.JobStatusError, model.MediaURLs{}, jobErr) {
		return
	}
	p.log.Error("job failed", slog.String("job_id", h.ID), slog.String("message", msg))
	p.view.SetBusy(false)
	p.view.ShowError(msg)
	h.release()
}
