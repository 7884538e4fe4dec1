package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stemsync/karaoke/internal/client"
	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/service"
)

// Stage progress reported while a job runs
const (
	progressFetchInfo   = 5
	progressDownloading = 15
	progressSeparating  = 40
	progressMerging     = 85
)

// SampleMedia names the files served for jobs when no separator is configured
var SampleMedia = struct {
	Video, Instrumental, Vocals string
}{
	Video:        "sample_karaoke.mp4",
	Instrumental: "sample_instrumental.wav",
	Vocals:       "sample_vocals.wav",
}

// JobStore records job progress. *service.JobService satisfies it.
type JobStore interface {
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error
	CompleteJob(ctx context.Context, jobID string, result *model.MediaURLs) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
}

// Notifier pushes job events to live subscribers. *websocket.Hub satisfies it.
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, result *model.MediaURLs)
	BroadcastError(jobID string, code, message string)
}

// SeparationWorker turns a video URL into a karaoke video plus separated stems
type SeparationWorker struct {
	jobs      JobStore
	tools     client.MediaTools
	separator client.StemSeparator
	store     client.MediaStore
	notifier  Notifier
	tmpDir    string
	mockDelay time.Duration
	log       *slog.Logger
}

// Option configures a SeparationWorker.
type Option func(*SeparationWorker)

// WithMockStepDelay sets how long each stage takes in the mock pipeline.
func WithMockStepDelay(d time.Duration) Option {
	return func(w *SeparationWorker) { w.mockDelay = d }
}

// WithLogger sets the worker logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *SeparationWorker) { w.log = l }
}

// NewSeparationWorker creates a new separation worker. A nil separator
// selects the mock pipeline, which reports the usual stages and completes
// with the sample media set.
func NewSeparationWorker(
	jobs JobStore,
	tools client.MediaTools,
	separator client.StemSeparator,
	store client.MediaStore,
	notifier Notifier,
	tmpDir string,
	opts ...Option,
) *SeparationWorker {
	w := &SeparationWorker{
		jobs:      jobs,
		tools:     tools,
		separator: separator,
		store:     store,
		notifier:  notifier,
		tmpDir:    tmpDir,
		mockDelay: 2 * time.Second,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessTask handles separation task processing
func (w *SeparationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload service.SeparationTaskPayload
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	log := w.log.With(slog.String("job_id", jobID))
	log.Info("starting separation job")

	var payload model.SeparationJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal separation payload: %v: %w", err, asynq.SkipRetry)
	}

	var (
		result *model.MediaURLs
		err    error
	)
	if w.separator == nil {
		result, err = w.runMock(ctx, jobID, payload.BaseURL)
	} else {
		result, err = w.run(ctx, jobID, &payload)
	}
	if err != nil {
		log.Error("separation job failed", slog.Any("error", err))
		w.failJob(context.WithoutCancel(ctx), jobID, "Error: "+err.Error())
		return fmt.Errorf("separation failed: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.jobs.CompleteJob(ctx, jobID, result); err != nil {
		if w.separator != nil {
			w.withdraw(ctx, jobID, publishedFiles(result))
		}
		w.failJob(ctx, jobID, "Error: failed to save result")
		return err
	}
	w.notifier.BroadcastComplete(jobID, result)

	log.Info("separation job completed", slog.String("video", result.Video))
	return nil
}

// run executes the real pipeline. Temp files are removed whatever the outcome.
func (w *SeparationWorker) run(ctx context.Context, jobID string, payload *model.SeparationJobPayload) (*model.MediaURLs, error) {
	inputWav := filepath.Join(w.tmpDir, jobID+"_in.wav")
	videoOnly := filepath.Join(w.tmpDir, jobID+"_v.mp4")
	stemsDir := filepath.Join(w.tmpDir, jobID+"_stems")
	karaoke := filepath.Join(w.tmpDir, jobID+"_karaoke.mp4")
	defer func() {
		os.Remove(inputWav)
		os.Remove(videoOnly)
		os.Remove(karaoke)
		os.RemoveAll(stemsDir)
	}()

	if err := os.MkdirAll(stemsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	w.progress(ctx, jobID, progressFetchInfo, model.StepFetchInfo)
	videoID, err := w.tools.VideoID(ctx, payload.SourceURL)
	if err != nil {
		return nil, err
	}
	w.log.Debug("resolved video", slog.String("job_id", jobID), slog.String("video_id", videoID))

	w.progress(ctx, jobID, progressDownloading, model.StepDownloading)
	if err := w.tools.DownloadAudio(ctx, payload.SourceURL, inputWav); err != nil {
		return nil, err
	}
	if err := w.tools.DownloadVideo(ctx, payload.SourceURL, videoOnly); err != nil {
		return nil, err
	}

	w.progress(ctx, jobID, progressSeparating, model.StepSeparating)
	stems, err := w.separator.Separate(ctx, &client.SeparateRequest{
		InputPath: inputWav,
		OutputDir: stemsDir,
	})
	if err != nil {
		return nil, err
	}

	w.progress(ctx, jobID, progressMerging, model.StepMerging)
	if err := w.tools.MuxKaraoke(ctx, stems.Instrumental, inputWav, videoOnly, karaoke); err != nil {
		return nil, err
	}

	outputs := []mediaFile{
		{karaoke, jobID + "_karaoke.mp4"},
		{stems.Instrumental, jobID + "_instrumental" + stemExt(stems.Instrumental)},
		{stems.Vocals, jobID + "_vocals" + stemExt(stems.Vocals)},
	}
	urls := make([]string, 0, len(outputs))
	for _, out := range outputs {
		url, err := w.store.Store(ctx, out.src, out.name, payload.BaseURL)
		if err != nil {
			w.withdraw(ctx, jobID, outputs[:len(urls)])
			return nil, err
		}
		urls = append(urls, url)
	}

	return &model.MediaURLs{
		Video:        urls[0],
		Instrumental: urls[1],
		Vocals:       urls[2],
	}, nil
}

// mediaFile is a finished file and the name it is published under.
type mediaFile struct {
	src, name string
}

// publishedFiles recovers the stored names from a job's media URLs.
func publishedFiles(result *model.MediaURLs) []mediaFile {
	return []mediaFile{
		{name: path.Base(result.Video)},
		{name: path.Base(result.Instrumental)},
		{name: path.Base(result.Vocals)},
	}
}

// withdraw removes media already published for a job that is about to fail.
func (w *SeparationWorker) withdraw(ctx context.Context, jobID string, stored []mediaFile) {
	ctx = context.WithoutCancel(ctx)
	for _, out := range stored {
		if err := w.store.Remove(ctx, out.name); err != nil {
			w.log.Warn("failed to remove stored media",
				slog.String("job_id", jobID),
				slog.String("name", out.name),
				slog.Any("error", err),
			)
		}
	}
}

// runMock walks the stages without external tools.
func (w *SeparationWorker) runMock(ctx context.Context, jobID, baseURL string) (*model.MediaURLs, error) {
	steps := []struct {
		progress int
		step     string
	}{
		{progressFetchInfo, model.StepFetchInfo},
		{progressDownloading, model.StepDownloading},
		{progressSeparating, model.StepSeparating},
		{progressMerging, model.StepMerging},
	}

	for _, step := range steps {
		w.progress(ctx, jobID, step.progress, step.step)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.mockDelay):
		}
	}

	base := strings.TrimRight(baseURL, "/")
	return &model.MediaURLs{
		Video:        base + "/songs/" + SampleMedia.Video,
		Instrumental: base + "/songs/" + SampleMedia.Instrumental,
		Vocals:       base + "/songs/" + SampleMedia.Vocals,
	}, nil
}

func (w *SeparationWorker) progress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.jobs.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		w.log.Warn("failed to update progress", slog.String("job_id", jobID), slog.Any("error", err))
	}
	w.notifier.BroadcastProgress(jobID, progress, model.JobStatusProcessing, step)
}

func (w *SeparationWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.jobs.FailJob(ctx, jobID, errMsg); err != nil {
		w.log.Error("failed to mark job as failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	w.notifier.BroadcastError(jobID, "SEPARATION_FAILED", errMsg)
}

func stemExt(file string) string {
	if ext := filepath.Ext(file); ext != "" {
		return ext
	}
	return ".wav"
}
