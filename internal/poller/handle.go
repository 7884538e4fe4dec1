package poller

import (
	"context"
	"sync"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer"
)

// JobHandle tracks one submitted job. It owns the poll task, which is stopped
// exactly once when the job reaches a terminal state or is cancelled.
type JobHandle struct {
	ID string

	mu       sync.Mutex
	task     timer.Task
	status   model.JobStatus
	finished bool
	result   model.MediaURLs
	err      error
	polls    int
	done     chan struct{}
}

func newJobHandle(id string) *JobHandle {
	return &JobHandle{
		ID:     id,
		status: model.JobStatusSubmitted,
		done:   make(chan struct{}),
	}
}

// Done is closed once the job is complete, failed or cancelled.
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job finishes or ctx is done.
func (h *JobHandle) Wait(ctx context.Context) (model.MediaURLs, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return model.MediaURLs{}, ctx.Err()
	}
}

// Status returns the last observed status.
func (h *JobHandle) Status() model.JobStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Polls returns how many status requests have been issued.
func (h *JobHandle) Polls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.polls
}

func (h *JobHandle) isFinished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// beginPoll counts a status request unless the handle already finished.
func (h *JobHandle) beginPoll() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return false
	}
	h.polls++
	return true
}

func (h *JobHandle) observe(status model.JobStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.finished {
		h.status = status
	}
}

func (h *JobHandle) setTask(t timer.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.task = t
	if h.finished {
		t.Stop()
	}
}

// finish records the terminal outcome. Only the first caller wins; it stops
// the poll task and must call release once the UI is updated. Later callers
// get false and must not touch the UI.
func (h *JobHandle) finish(status model.JobStatus, result model.MediaURLs, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return false
	}
	h.finished = true
	h.status = status
	h.result = result
	h.err = err
	if h.task != nil {
		h.task.Stop()
	}
	return true
}

// release closes Done. Waiters wake only after the terminal outcome has been
// presented.
func (h *JobHandle) release() {
	close(h.done)
}
