package services

import (
	"context"
	"fmt"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type SummaryResult struct {
	Users   int `json:"users"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// DailySummaryJob sends every reachable user with crops one consolidated report.
type DailySummaryJob struct {
	users     UserDirectory
	crops     CropStore
	log       NotificationLog
	sender    notifier.Sender
	listLimit int
	deliveryEnv
}

func NewDailySummaryJob(users UserDirectory, crops CropStore, log NotificationLog, sender notifier.Sender, listLimit int, opts ...Option) *DailySummaryJob {
	return &DailySummaryJob{
		users:       users,
		crops:       crops,
		log:         log,
		sender:      sender,
		listLimit:   listLimit,
		deliveryEnv: newDeliveryEnv("daily_summary", opts),
	}
}

func (j *DailySummaryJob) Run(ctx context.Context) error {
	_, err := j.Send(ctx)
	return err
}

// Send runs one pass. Failures for one user never stop the others.
func (j *DailySummaryJob) Send(ctx context.Context) (SummaryResult, error) {
	var result SummaryResult
	now := j.now()

	ctx, span := tracing.Tracer().Start(ctx, "job.daily_summary")
	defer span.End()

	users, err := j.users.FindReachable(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return result, fmt.Errorf("failed to load users: %w", err)
	}
	result.Users = len(users)

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sent, skipped, err := j.sendOne(ctx, user, now)
		switch {
		case err != nil:
			j.logger.Error().Err(err).Uint("user_id", user.ID).Msg("daily summary failed")
			result.Failed++
		case skipped:
			result.Skipped++
		case sent:
			result.Sent++
		default:
			result.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("users", result.Users),
		attribute.Int("sent", result.Sent),
		attribute.Int("failed", result.Failed),
	)
	j.logger.Info().
		Int("users", result.Users).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("daily summaries processed")
	return result, nil
}

func (j *DailySummaryJob) sendOne(ctx context.Context, user models.User, now time.Time) (sent, skipped bool, err error) {
	counts, err := j.crops.CountsForUser(ctx, user.ID, now)
	if err != nil {
		return false, false, fmt.Errorf("failed to count crops: %w", err)
	}
	if counts.Total == 0 {
		return false, true, nil
	}

	active, err := j.crops.ListActiveForUser(ctx, user.ID)
	if err != nil {
		return false, false, fmt.Errorf("failed to list crops: %w", err)
	}

	text := dailySummaryMessage(counts, active, now, j.listLimit, j.location)
	entry := &models.Notification{
		UserID:  user.ID,
		Type:    models.NotificationDailySummary,
		Title:   dailySummaryTitle,
		Message: text,
	}

	sendErr := j.send(ctx, j.sender, string(models.NotificationDailySummary), notifier.Message{
		ChatID: user.ChatHandle(),
		Title:  dailySummaryTitle,
		Text:   text,
	})
	if sendErr != nil {
		j.logger.Warn().Err(sendErr).Uint("user_id", user.ID).Msg("daily summary delivery failed")
	} else {
		sentAt := now
		entry.Sent = true
		entry.SentAt = &sentAt
	}

	if err := j.log.Append(ctx, entry); err != nil {
		return sendErr == nil, false, fmt.Errorf("failed to log summary: %w", err)
	}
	return sendErr == nil, false, nil
}
