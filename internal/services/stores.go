package services

import (
	"context"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
)

// CropStore is the view of planted crops the notification jobs need.
type CropStore interface {
	FindReadyUnnotified(ctx context.Context, now time.Time, filter repository.ReadyFilter) ([]models.UserCrop, error)
	MarkNotified(ctx context.Context, id uint, at time.Time) (bool, error)
	RecordNotifyFailure(ctx context.Context, id uint) error
	CountsForUser(ctx context.Context, userID uint, now time.Time) (repository.CropCounts, error)
	ListActiveForUser(ctx context.Context, userID uint) ([]models.UserCrop, error)
}

// NotificationLog is the append-only delivery history.
type NotificationLog interface {
	Append(ctx context.Context, notification *models.Notification) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserDirectory interface {
	FindReachable(ctx context.Context) ([]models.User, error)
}
