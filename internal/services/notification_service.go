package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/dedup"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

var ErrEmptyBroadcast = errors.New("broadcast message is empty")

type BroadcastResult struct {
	Users  int `json:"users"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type NotificationService struct {
	userRepo         *repository.UserRepository
	notificationRepo *repository.NotificationRepository
	sender           notifier.Sender
	deliveryEnv
}

func NewNotificationService(
	userRepo *repository.UserRepository,
	notificationRepo *repository.NotificationRepository,
	sender notifier.Sender,
	opts ...Option,
) *NotificationService {
	return &NotificationService{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		sender:           sender,
		deliveryEnv:      newDeliveryEnv("notification_service", opts),
	}
}

// SendTest delivers a test message to the user's linked chat and logs the attempt.
func (s *NotificationService) SendTest(ctx context.Context, username string) (*models.Notification, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.ChatHandle() == "" {
		return nil, ErrTelegramNotLinked
	}

	now := s.now()
	text := testMessage(user.Username, now, s.location)
	entry := &models.Notification{
		UserID:  user.ID,
		Type:    models.NotificationTest,
		Title:   testTitle,
		Message: text,
	}

	sendErr := s.send(ctx, s.sender, string(models.NotificationTest), notifier.Message{
		ChatID: user.ChatHandle(),
		Title:  testTitle,
		Text:   text,
	})
	if sendErr == nil {
		sentAt := now
		entry.Sent = true
		entry.SentAt = &sentAt
	}

	if err := s.notificationRepo.Append(ctx, entry); err != nil {
		return nil, err
	}
	if sendErr != nil {
		return entry, fmt.Errorf("test notification failed: %w", sendErr)
	}
	return entry, nil
}

// Broadcast sends one message to every linked user. A failure for one user is
// logged and counted; the rest still get the message.
func (s *NotificationService) Broadcast(ctx context.Context, title, body string) (BroadcastResult, error) {
	var result BroadcastResult
	body = strings.TrimSpace(body)
	if body == "" {
		return result, ErrEmptyBroadcast
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = broadcastTitle
	}
	now := s.now()

	ctx, span := tracing.Tracer().Start(ctx, "service.broadcast")
	defer span.End()

	users, err := s.userRepo.FindLinked(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load users: %w", err)
	}
	result.Users = len(users)

	text := broadcastMessage(title, body)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.broadcastOne(ctx, user, title, text, now); err != nil {
			s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("broadcast delivery failed")
			result.Failed++
			continue
		}
		result.Sent++
	}

	span.SetAttributes(
		attribute.Int("users", result.Users),
		attribute.Int("sent", result.Sent),
		attribute.Int("failed", result.Failed),
	)
	s.logger.Info().
		Int("users", result.Users).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("broadcast processed")
	return result, nil
}

func (s *NotificationService) broadcastOne(ctx context.Context, user models.User, title, text string, now time.Time) error {
	entry := &models.Notification{
		UserID:  user.ID,
		Type:    models.NotificationBroadcast,
		Title:   title,
		Message: text,
	}

	sendErr := s.send(ctx, s.sender, string(models.NotificationBroadcast), notifier.Message{
		ChatID:         user.ChatHandle(),
		Title:          title,
		Text:           text,
		IdempotencyKey: dedup.Key(models.NotificationBroadcast, user.ID, now.UnixNano()),
	})
	if sendErr == nil {
		sentAt := now
		entry.Sent = true
		entry.SentAt = &sentAt
	}

	if err := s.notificationRepo.Append(ctx, entry); err != nil {
		return errors.Join(sendErr, fmt.Errorf("failed to log broadcast: %w", err))
	}
	return sendErr
}

func (s *NotificationService) List(ctx context.Context, username string, query repository.NotificationQuery) ([]models.Notification, int64, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, 0, err
	}
	if user == nil {
		return nil, 0, ErrUserNotFound
	}
	return s.notificationRepo.ListByUser(ctx, user.ID, query)
}

func (s *NotificationService) Stats(ctx context.Context, username string) (repository.NotificationStats, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return repository.NotificationStats{}, err
	}
	if user == nil {
		return repository.NotificationStats{}, ErrUserNotFound
	}
	return s.notificationRepo.StatsForUser(ctx, user.ID)
}
