package services

import (
	"context"
	"fmt"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// CleanupJob enforces notification log retention.
type CleanupJob struct {
	log       NotificationLog
	retention time.Duration
	deliveryEnv
}

func NewCleanupJob(log NotificationLog, retention time.Duration, opts ...Option) *CleanupJob {
	return &CleanupJob{
		log:         log,
		retention:   retention,
		deliveryEnv: newDeliveryEnv("cleanup", opts),
	}
}

func (j *CleanupJob) Run(ctx context.Context) error {
	_, err := j.Cleanup(ctx)
	return err
}

// Cleanup deletes rows strictly older than the retention window.
func (j *CleanupJob) Cleanup(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)

	ctx, span := tracing.Tracer().Start(ctx, "job.cleanup")
	defer span.End()

	deleted, err := j.log.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}

	span.SetAttributes(attribute.Int64("notifications.deleted", deleted))
	j.metrics.LogsDeleted(deleted)
	j.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("old notifications cleaned up")
	return deleted, nil
}
