package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemsync/karaoke/internal/client"
	"github.com/stemsync/karaoke/internal/config"
	"github.com/stemsync/karaoke/internal/history"
	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/platform/logger"
	"github.com/stemsync/karaoke/internal/poller"
)

type app struct {
	cfg *config.Config
	log *slog.Logger
	out io.Writer
	err io.Writer
}

// Execute runs the karaoke CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		if !alreadyShown(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree writing to out and logging to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, err: errOut}
	var apiURL, logLevel string

	root := &cobra.Command{
		Use:           "karaoke",
		Short:         "Turn a video into a karaoke track and play the stems in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if apiURL != "" {
				cfg.Client.APIURL = strings.TrimRight(apiURL, "/")
			}
			a.cfg = cfg
			a.log = logger.NewWithWriter(a.err, logLevel, "text")
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&apiURL, "api", "", "processing API base URL (default from KARAOKE_API_URL)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(a.submitCmd())
	root.AddCommand(a.openCmd())
	root.AddCommand(a.historyCmd())
	return root
}

func (a *app) newAPI() *client.APIClient {
	return client.NewAPIClient(a.cfg.Client.APIURL, a.log)
}

// preflight fails fast when the processing API cannot be reached.
func (a *app) preflight(ctx context.Context, api *client.APIClient) error {
	if err := api.HealthCheck(ctx); err != nil {
		return fmt.Errorf("karaoke API at %s is unreachable: %w", a.cfg.Client.APIURL, err)
	}
	return nil
}

func (a *app) newPoller(api *client.APIClient, p *player) *poller.Poller {
	return poller.New(
		api,
		p.term,
		p.sched,
		p.ctrl.Initialize,
		poller.WithInterval(a.cfg.Client.PollInterval),
		poller.WithLogger(a.log),
	)
}

// openHistory opens the local history. History is best effort: a failure
// is logged and the command carries on without it.
func (a *app) openHistory() *historyLog {
	store, err := history.Open(a.cfg.Client.HistoryPath)
	if err != nil {
		a.log.Warn("history unavailable", slog.Any("error", err))
		return &historyLog{log: a.log}
	}
	return &historyLog{store: store, log: a.log}
}

// await blocks until h finishes, records the outcome and, unless noShell,
// hands the terminal to the playback shell.
func (a *app) await(ctx context.Context, pl *poller.Poller, h *poller.JobHandle, p *player, hist *historyLog, noShell bool) error {
	urls, err := h.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			pl.Cancel(h)
			fmt.Fprintln(a.out, "cancelled; the job keeps running on the server, resume with: karaoke open", h.ID)
			return nil
		}
		var jobErr *poller.JobError
		if errors.As(err, &jobErr) {
			hist.fail(h.ID, jobErr.Message)
		}
		return err
	}

	hist.complete(h.ID, urls)
	if noShell {
		return nil
	}
	return NewShell(p.ctrl, p.units, a.out).Run()
}

// alreadyShown reports errors the terminal view has printed.
func alreadyShown(err error) bool {
	var (
		vErr *poller.ValidationError
		sErr *poller.SubmissionError
		jErr *poller.JobError
	)
	return errors.As(err, &vErr) || errors.As(err, &sErr) || errors.As(err, &jErr)
}

type historyLog struct {
	store *history.Store
	log   *slog.Logger
}

func (h *historyLog) record(jobID, sourceURL string) {
	if h.store == nil {
		return
	}
	if err := h.store.Record(context.Background(), jobID, sourceURL, time.Now()); err != nil {
		h.log.Warn("failed to record submission", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (h *historyLog) complete(jobID string, urls model.MediaURLs) {
	if h.store == nil {
		return
	}
	if err := h.store.Complete(context.Background(), jobID, urls, time.Now()); err != nil && !errors.Is(err, history.ErrNotFound) {
		h.log.Warn("failed to update history", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (h *historyLog) fail(jobID, message string) {
	if h.store == nil {
		return
	}
	if err := h.store.Fail(context.Background(), jobID, message, time.Now()); err != nil && !errors.Is(err, history.ErrNotFound) {
		h.log.Warn("failed to update history", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

// lookup returns the recorded entry for jobID, or nil when there is none.
func (h *historyLog) lookup(ctx context.Context, jobID string) *history.Entry {
	if h.store == nil {
		return nil
	}
	e, err := h.store.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			h.log.Warn("failed to read history", slog.String("job_id", jobID), slog.Any("error", err))
		}
		return nil
	}
	return e
}

func (h *historyLog) close() {
	if h.store != nil {
		h.store.Close()
	}
}
