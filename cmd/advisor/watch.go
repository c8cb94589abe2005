package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"tradegraph/internal/logger"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}
	var (
		schedule string
		runNow   bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the analysis on a cron schedule until interrupted",
		Long: `watch runs the analysis for the configured universe (or --symbols) every
time the cron expression fires. The expression uses the standard five
fields: minute hour day-of-month month day-of-week.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if schedule == "" {
				schedule = a.cfg.Schedule.Cron
			}
			job := newWatchJob(a, flags, cmd)

			c := cron.New()
			if _, err := c.AddFunc(schedule, func() { job.run(ctx) }); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			logger.Info(ctx, "Watching", "schedule", schedule)
			c.Start()

			if runNow {
				go job.run(ctx)
			}

			<-ctx.Done()
			logger.Info(ctx, "Stopping scheduler")
			<-c.Stop().Done()
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&schedule, "cron", "", "cron expression (default: schedule.cron)")
	cmd.Flags().BoolVar(&runNow, "now", false, "also run once at startup")
	return cmd
}

// watchJob serializes scheduled runs; a tick that fires while a run is in
// progress is skipped.
type watchJob struct {
	a     *app
	flags *requestFlags
	cmd   *cobra.Command
	mu    sync.Mutex
}

func newWatchJob(a *app, flags *requestFlags, cmd *cobra.Command) *watchJob {
	return &watchJob{a: a, flags: flags, cmd: cmd}
}

func (j *watchJob) run(ctx context.Context) {
	if !j.mu.TryLock() {
		logger.Warn(ctx, "Previous run still in progress, skipping tick")
		return
	}
	defer j.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	res, err := j.a.runOnce(ctx, j.flags.request(j.a.cfg), !j.flags.noRunLog, j.cmd.OutOrStdout())
	if err != nil {
		logger.ErrorWithErr(ctx, "Scheduled analysis failed", err)
		return
	}
	logger.Info(ctx, "Scheduled analysis finished", "run_id", res.RunID, "recommendations", len(res.Recommendations))
}
