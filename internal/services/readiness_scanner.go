package services

import (
	"context"
	"fmt"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/dedup"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ScanResult struct {
	Found        int `json:"found"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Deduplicated int `json:"deduplicated"`
}

// ReadinessScanner announces each crop once, the first tick after it becomes ready.
type ReadinessScanner struct {
	crops  CropStore
	log    NotificationLog
	sender notifier.Sender
	filter repository.ReadyFilter
	deliveryEnv
}

func NewReadinessScanner(crops CropStore, log NotificationLog, sender notifier.Sender, filter repository.ReadyFilter, opts ...Option) *ReadinessScanner {
	return &ReadinessScanner{
		crops:       crops,
		log:         log,
		sender:      sender,
		filter:      filter,
		deliveryEnv: newDeliveryEnv("readiness_scanner", opts),
	}
}

// Run adapts Scan to the scheduler.
func (s *ReadinessScanner) Run(ctx context.Context) error {
	_, err := s.Scan(ctx)
	return err
}

// Scan runs one tick. A failed delivery leaves the crop for the next tick; a
// store failure aborts the tick.
func (s *ReadinessScanner) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	now := s.now()

	ctx, span := tracing.Tracer().Start(ctx, "job.readiness_scan")
	defer span.End()

	crops, err := s.crops.FindReadyUnnotified(ctx, now, s.filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return result, fmt.Errorf("failed to load ready crops: %w", err)
	}
	result.Found = len(crops)

	for _, crop := range crops {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		// never announce early, whatever the store returned
		if !crop.ReadyAt(now) {
			continue
		}

		delivered, deduplicated, err := s.notify(ctx, crop, now)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "store write failed")
			return result, err
		case deduplicated:
			result.Deduplicated++
		case delivered:
			result.Sent++
		default:
			result.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("crops.found", result.Found),
		attribute.Int("crops.sent", result.Sent),
		attribute.Int("crops.failed", result.Failed),
	)
	if result.Found > 0 {
		s.logger.Info().
			Int("found", result.Found).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Int("deduplicated", result.Deduplicated).
			Msg("harvest notifications processed")
	}
	return result, nil
}

func (s *ReadinessScanner) notify(ctx context.Context, crop models.UserCrop, now time.Time) (delivered, deduplicated bool, err error) {
	logger := s.logger.With().Uint("crop_id", crop.ID).Uint("user_id", crop.UserID).Logger()
	key := dedup.Key(models.NotificationHarvestReady, crop.ID, crop.HarvestReadyAt.Unix())

	seen, err := s.ledger.Seen(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency ledger unavailable, sending anyway")
	}
	if seen {
		// Delivered before a crash cut the tick short; only the flag is missing.
		if _, err := s.crops.MarkNotified(ctx, crop.ID, now); err != nil {
			return false, false, fmt.Errorf("failed to flag crop %d: %w", crop.ID, err)
		}
		s.metrics.Notification(string(models.NotificationHarvestReady), "deduplicated")
		logger.Info().Msg("crop already announced, flag restored")
		return false, true, nil
	}

	text := harvestReadyMessage(crop, s.location)
	entry := &models.Notification{
		UserID:  crop.UserID,
		Type:    models.NotificationHarvestReady,
		Title:   harvestReadyTitle,
		Message: text,
	}

	sendErr := s.send(ctx, s.sender, string(models.NotificationHarvestReady), notifier.Message{
		ChatID:         crop.User.ChatHandle(),
		Title:          harvestReadyTitle,
		Text:           text,
		IdempotencyKey: key,
		CropID:         crop.ID,
	})
	if sendErr != nil {
		logger.Warn().Err(sendErr).
			Bool("transient", notifier.IsTransient(sendErr)).
			Int("attempt", crop.NotifyAttempts+1).
			Msg("harvest notification failed")
		// One failure row per crop; later retries only bump the counter.
		if crop.NotifyAttempts == 0 {
			if err := s.log.Append(ctx, entry); err != nil {
				return false, false, fmt.Errorf("failed to log notification for crop %d: %w", crop.ID, err)
			}
		}
		if err := s.crops.RecordNotifyFailure(ctx, crop.ID); err != nil {
			return false, false, fmt.Errorf("failed to count attempt for crop %d: %w", crop.ID, err)
		}
		return false, false, nil
	}

	if err := s.ledger.Record(ctx, key); err != nil {
		logger.Warn().Err(err).Msg("failed to record delivery in idempotency ledger")
	}

	sentAt := now
	entry.Sent = true
	entry.SentAt = &sentAt

	marked, markErr := s.crops.MarkNotified(ctx, crop.ID, now)
	if err := s.log.Append(ctx, entry); err != nil {
		return true, false, fmt.Errorf("failed to log notification for crop %d: %w", crop.ID, err)
	}
	if markErr != nil {
		return true, false, fmt.Errorf("failed to flag crop %d: %w", crop.ID, markErr)
	}
	if !marked {
		logger.Warn().Msg("crop was flagged by a concurrent scan")
	}

	logger.Debug().Msg("harvest notification sent")
	return true, false, nil
}
