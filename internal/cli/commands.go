package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) submitCmd() *cobra.Command {
	var noShell bool
	var vocalRate float64

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a video for separation and open the stems when ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := a.newAPI()
			if err := a.preflight(ctx, api); err != nil {
				return err
			}

			hist := a.openHistory()
			defer hist.close()

			p := a.newPlayer(vocalRate)
			defer p.close()

			pl := a.newPoller(api, p)
			h, err := pl.Start(ctx, args[0])
			if err != nil {
				return err
			}
			hist.record(h.ID, args[0])
			fmt.Fprintf(a.out, "job %s submitted\n", h.ID)

			return a.await(ctx, pl, h, p, hist, noShell)
		},
	}
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "exit once the media is ready instead of opening the playback shell")
	cmd.Flags().Float64Var(&vocalRate, "vocal-rate", 1, "playback rate of the vocal unit (values other than 1 exercise drift correction)")
	return cmd
}

func (a *app) openCmd() *cobra.Command {
	var noShell bool
	var vocalRate float64

	cmd := &cobra.Command{
		Use:   "open <jobId>",
		Short: "Attach to a submitted job and play it once complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := a.newAPI()
			if err := a.preflight(ctx, api); err != nil {
				return err
			}

			hist := a.openHistory()
			defer hist.close()
			if e := hist.lookup(ctx, args[0]); e != nil {
				fmt.Fprintf(a.out, "resuming job %s: %s (submitted %s)\n", e.JobID, e.SourceURL, e.SubmittedAt.Format(time.DateTime))
			}

			p := a.newPlayer(vocalRate)
			defer p.close()

			pl := a.newPoller(api, p)
			h, err := pl.Resume(ctx, args[0])
			if err != nil {
				return err
			}

			return a.await(ctx, pl, h, p, hist, noShell)
		},
	}
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "exit once the media is ready instead of opening the playback shell")
	cmd.Flags().Float64Var(&vocalRate, "vocal-rate", 1, "playback rate of the vocal unit")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs submitted from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist := a.openHistory()
			defer hist.close()
			if hist.store == nil {
				return fmt.Errorf("history database unavailable at %s", a.cfg.Client.HistoryPath)
			}

			entries, err := hist.store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No submissions yet.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATUS\tSUBMITTED\tURL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.JobID, e.Status, e.SubmittedAt.Format(time.DateTime), e.SourceURL)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}
