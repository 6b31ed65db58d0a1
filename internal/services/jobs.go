package services

import (
	"github.com/h4ks-com/crop-notifier/internal/config"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
)

const (
	JobHarvestCheck = "harvest-check"
	JobDailySummary = "daily-summary"
	JobCleanup      = "cleanup"
)

type Jobs struct {
	Scanner *ReadinessScanner
	Summary *DailySummaryJob
	Cleanup *CleanupJob
}

// Register puts the three jobs on their configured schedules.
func (j Jobs) Register(h *scheduler.Harness, cfg config.SchedulerConfig) error {
	if err := h.Register(JobHarvestCheck, cfg.HarvestCheckSchedule, j.Scanner.Run); err != nil {
		return err
	}
	if err := h.Register(JobDailySummary, cfg.DailySummarySchedule, j.Summary.Run); err != nil {
		return err
	}
	return h.Register(JobCleanup, cfg.CleanupSchedule, j.Cleanup.Run)
}
