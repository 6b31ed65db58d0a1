package repository

import (
	"context"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"gorm.io/gorm"
)

type NotificationQuery struct {
	Type  models.NotificationType
	Page  int
	Limit int
}

type NotificationStats struct {
	Total  int64            `json:"total"`
	Sent   int64            `json:"sent"`
	Failed int64            `json:"failed"`
	ByType map[string]int64 `json:"by_type"`
}

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Append(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// DeleteOlderThan removes rows created strictly before cutoff.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, query NotificationQuery) ([]models.Notification, int64, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = 20
	}

	db := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := db.Order("created_at DESC, id DESC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepository) StatsForUser(ctx context.Context, userID uint) (NotificationStats, error) {
	stats := NotificationStats{ByType: map[string]int64{}}

	var rows []struct {
		Type  string
		Sent  bool
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("type, sent, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("type, sent").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		stats.Total += row.Count
		stats.ByType[row.Type] += row.Count
		if row.Sent {
			stats.Sent += row.Count
		} else {
			stats.Failed += row.Count
		}
	}
	return stats, nil
}
