package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stemsync/karaoke/internal/model"
)

const (
	TaskTypeSeparation = "separation:process"
	QueueSeparation    = "separation"
)

const (
	jobTTL = 24 * time.Hour

	// pending tasks scanned when computing a queue position
	maxQueueScan = 500

	// fresh ids drawn before StartSeparation gives up
	maxIDAttempts = 5
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// TaskEnqueuer is the subset of *asynq.Client used to queue work.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector is the subset of *asynq.Inspector used for queue positions.
type QueueInspector interface {
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobMetrics receives job lifecycle counts.
type JobMetrics interface {
	IncJobsSubmitted()
	IncJobsCompleted()
	IncJobsFailed()
}

// JobService handles separation job management
type JobService struct {
	redis     *redis.Client
	enqueuer  TaskEnqueuer
	inspector QueueInspector
	maxRetry  int
	metrics   JobMetrics
	newID     func() string
	log       *slog.Logger
}

// Option configures a JobService.
type Option func(*JobService)

// WithMaxRetry sets how often asynq retries a failed task.
func WithMaxRetry(n int) Option {
	return func(s *JobService) { s.maxRetry = n }
}

// WithMetrics reports lifecycle counts to m.
func WithMetrics(m JobMetrics) Option {
	return func(s *JobService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *JobService) { s.log = l }
}

// NewJobService creates a job service. inspector may be nil, in which case
// queued jobs report "submitted" without a position.
func NewJobService(redisClient *redis.Client, enqueuer TaskEnqueuer, inspector QueueInspector, opts ...Option) *JobService {
	s := &JobService{
		redis:     redisClient,
		enqueuer:  enqueuer,
		inspector: inspector,
		newID:     newJobID,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSeparation queues a new separation job. baseURL is the public root
// that media URLs are built from.
func (s *JobService) StartSeparation(ctx context.Context, req *model.ProcessRequest, baseURL string) (*model.ProcessResponse, error) {
	payloadBytes, err := json.Marshal(&model.SeparationJobPayload{
		SourceURL: req.URL,
		BaseURL:   baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Short ids can collide with a live record or a retained task; either
	// way the id is abandoned and a fresh one drawn.
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		jobID := s.newID()
		now := time.Now()

		job := &model.Job{
			ID:          jobID,
			Status:      model.JobStatusSubmitted,
			Progress:    0,
			CurrentStep: model.StepQueued,
			Payload:     payloadBytes,
			CreatedAt:   now,
		}

		created, err := s.createJob(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}
		if !created {
			s.log.Warn("job id already in use", slog.String("job_id", jobID))
			continue
		}

		task, err := NewSeparationTask(jobID, payloadBytes)
		if err != nil {
			s.redis.Del(ctx, jobKey(jobID))
			return nil, fmt.Errorf("failed to create task: %w", err)
		}

		_, err = s.enqueuer.Enqueue(task,
			asynq.TaskID(jobID),
			asynq.Queue(QueueSeparation),
			asynq.MaxRetry(s.maxRetry),
			asynq.Retention(jobTTL),
		)
		if err != nil {
			s.redis.Del(ctx, jobKey(jobID))
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				s.log.Warn("task id already in use", slog.String("job_id", jobID))
				continue
			}
			return nil, fmt.Errorf("failed to enqueue task: %w", err)
		}

		if s.metrics != nil {
			s.metrics.IncJobsSubmitted()
		}
		s.log.Info("separation job queued", slog.String("job_id", jobID), slog.String("url", req.URL))

		return &model.ProcessResponse{
			JobID:     jobID,
			Status:    model.JobStatusSubmitted,
			CreatedAt: now,
		}, nil
	}

	return nil, fmt.Errorf("failed to allocate a job id after %d attempts", maxIDAttempts)
}

// GetStatus returns the current status of a job
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.StatusResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Step:     job.CurrentStep,
		Progress: job.Progress,
	}

	switch job.Status {
	case model.JobStatusSubmitted:
		if pos := s.queuePosition(jobID); pos > 0 {
			resp.Status = model.JobStatusWaiting
			resp.Position = pos
		}
	case model.JobStatusComplete:
		resp.Data = job.Result
	case model.JobStatusError:
		if job.Error != nil {
			resp.Error = *job.Error
		}
	}

	return resp, nil
}

// queuePosition returns the 1-based position of jobID among pending tasks,
// or 0 when it is not pending or the queue cannot be inspected.
func (s *JobService) queuePosition(jobID string) int {
	if s.inspector == nil {
		return 0
	}

	tasks, err := s.inspector.ListPendingTasks(QueueSeparation, asynq.PageSize(maxQueueScan))
	if err != nil {
		s.log.Debug("queue inspection failed", slog.String("job_id", jobID), slog.Any("error", err))
		return 0
	}
	for i, t := range tasks {
		if t.ID == jobID {
			return i + 1
		}
	}
	return 0
}

// UpdateJobProgress updates job progress (called by worker)
func (s *JobService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status != model.JobStatusProcessing {
		job.Status = model.JobStatusProcessing
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks job as completed (called by worker)
func (s *JobService) CompleteJob(ctx context.Context, jobID string, result *model.MediaURLs) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusComplete
	job.Progress = 100
	job.CurrentStep = ""
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncJobsCompleted()
	}
	return nil
}

// FailJob marks job as failed (called by worker)
func (s *JobService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusError
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncJobsFailed()
	}
	return nil
}

// Helper methods

// createJob stores a new job record unless the id is taken.
func (s *JobService) createJob(ctx context.Context, job *model.Job) (bool, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	return s.redis.SetNX(ctx, jobKey(job.ID), data, jobTTL).Result()
}

func (s *JobService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// newJobID returns a short id: the first 8 characters of a random UUID.
func newJobID() string {
	return uuid.New().String()[:8]
}

// SeparationTaskPayload is the envelope carried by a separation task.
type SeparationTaskPayload struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// NewSeparationTask builds the asynq task for jobID.
func NewSeparationTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(SeparationTaskPayload{
		JobID:   jobID,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSeparation, data), nil
}
