package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/digest"
	"maildigest/internal/imap"
	"maildigest/internal/job"
	"maildigest/internal/schedule"
	"maildigest/internal/summarize"

	"github.com/spf13/cobra"
)

func newNowCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Build and send today's digest once, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd)
			if err != nil {
				return err
			}

			var preview io.Writer
			if dryRun {
				preview = cmd.OutOrStdout()
			}
			runner, err := buildRunner(s, preview)
			if err != nil {
				return err
			}

			_, err = runner.Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the digest instead of mailing it")

	return cmd
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Send the digest every day at the configured time (default)",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}
}

func runSchedule(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateSchedule(s.cfg); err != nil {
		return err
	}

	runner, err := buildRunner(s, nil)
	if err != nil {
		return err
	}
	loc, err := s.cfg.Location()
	if err != nil {
		return err
	}

	sched, err := schedule.New(s.cfg.Schedule.Hour, s.cfg.Schedule.Minute, loc, func(ctx context.Context) {
		// Failures are logged by the runner; the scheduler keeps going.
		_, _ = runner.Run(ctx)
	}, schedule.RealClock, s.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sched.Run(ctx)
}

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show when the next scheduled digest will be sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.ValidateSchedule(cfg); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			now := time.Now()
			next := schedule.NextRun(now, cfg.Schedule.Hour, cfg.Schedule.Minute, loc)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (in %s)\n", next.Format("2006-01-02 15:04 MST"), next.Sub(now).Round(time.Minute))
			return nil
		},
	}
}

// buildRunner wires the production collaborators. A non-nil preview replaces
// SMTP delivery, so SMTP settings are not required then.
func buildRunner(s session, preview io.Writer) (*job.Runner, error) {
	cfg := s.cfg
	if err := config.ValidateIMAP(cfg); err != nil {
		return nil, err
	}
	if err := config.ValidateSummarizer(cfg); err != nil {
		return nil, err
	}
	resolveAPIKey(&cfg, s.logger)

	opts := job.Options{
		Fetcher:    imap.NewService(s.logger),
		Summarizer: summarize.NewPolicy(summarize.NewClient(cfg.Summarizer.BaseURL, cfg.Summarizer.Model, cfg.Summarizer.APIKey, cfg.Summarizer.Timeout)),
		Logger:     s.logger,
		Preview:    preview,
	}
	if preview == nil {
		if err := config.ValidateSMTP(cfg); err != nil {
			return nil, err
		}
		opts.Sender = digest.NewSender(cfg)
	}

	return job.New(cfg, opts)
}
