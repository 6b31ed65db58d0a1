package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/spf13/cobra"
)

var runJobTimeout time.Duration

var runJobCmd = &cobra.Command{
	Use:   "run-job <name>",
	Short: "Run one scheduled job once and exit",
	Long: fmt.Sprintf(`Run a single job outside its schedule, using the same configuration
as serve. Useful from an external cron or to catch up after downtime.

Jobs: %s`, strings.Join([]string{services.JobHarvestCheck, services.JobDailySummary, services.JobCleanup}, ", ")),
	Example: `  crop-notifier run-job harvest-check
  crop-notifier run-job cleanup --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), args[0])
	},
}

func init() {
	runJobCmd.Flags().DurationVar(&runJobTimeout, "timeout", 5*time.Minute, "Abort the job after this long")
}

func runJob(parent context.Context, name string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(parent, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx, cancel := context.WithTimeout(parent, runJobTimeout)
	defer cancel()

	start := time.Now()
	if err := a.harness.RunNow(ctx, name); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	logger.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job completed")
	return nil
}
