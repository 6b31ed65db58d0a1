package repository

import (
	"context"
	"errors"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadyFilter narrows the readiness query.
type ReadyFilter struct {
	// IncludeHarvested also returns crops the user already harvested before
	// the scanner noticed them.
	IncludeHarvested bool
}

type CropCounts struct {
	Total     int64 `json:"total"`
	Ready     int64 `json:"ready"`
	Growing   int64 `json:"growing"`
	Harvested int64 `json:"harvested"`
}

type CropRepository struct {
	db *gorm.DB
}

func NewCropRepository(db *gorm.DB) *CropRepository {
	return &CropRepository{db: db}
}

func (r *CropRepository) Create(crop *models.UserCrop) error {
	return r.db.Create(crop).Error
}

func (r *CropRepository) FindByID(id uint) (*models.UserCrop, error) {
	var crop models.UserCrop
	err := r.db.Preload("CropType").First(&crop, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &crop, nil
}

func (r *CropRepository) FindByIDForUpdate(tx *gorm.DB, id uint) (*models.UserCrop, error) {
	var crop models.UserCrop
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&crop, id).Error
	if err != nil {
		return nil, err
	}
	return &crop, nil
}

// MarkHarvestedInTx writes only the harvest columns. The notification flag is
// owned by the readiness scanner and is never touched here.
func (r *CropRepository) MarkHarvestedInTx(tx *gorm.DB, id uint, at time.Time) (bool, error) {
	result := tx.Model(&models.UserCrop{}).
		Where("id = ? AND is_harvested = ?", id, false).
		Updates(map[string]any{"is_harvested": true, "harvested_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindReadyUnnotified returns crops whose ready time has passed and that were
// never announced, limited to owners who can receive a message.
func (r *CropRepository) FindReadyUnnotified(ctx context.Context, now time.Time, filter ReadyFilter) ([]models.UserCrop, error) {
	var crops []models.UserCrop
	db := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = user_crops.user_id AND users.deleted_at IS NULL").
		Preload("User").
		Preload("CropType").
		Where("user_crops.notification_sent = ?", false).
		Where("user_crops.harvest_ready_at <= ?", now.UTC()).
		Where("users.notifications_enabled = ?", true).
		Where("users.telegram_chat_id IS NOT NULL AND users.telegram_chat_id <> ''")

	if !filter.IncludeHarvested {
		db = db.Where("user_crops.is_harvested = ?", false)
	}

	err := db.Order("user_crops.harvest_ready_at, user_crops.id").Find(&crops).Error
	return crops, err
}

// MarkNotified flips notification_sent for one crop. It reports false when the
// flag was already set, so concurrent scans cannot both claim the crop.
func (r *CropRepository) MarkNotified(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UserCrop{}).
		Where("id = ? AND notification_sent = ?", id, false).
		Updates(map[string]any{
			"notification_sent": true,
			"notified_at":       at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordNotifyFailure counts a failed delivery for a crop that is still
// waiting to be announced.
func (r *CropRepository) RecordNotifyFailure(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.UserCrop{}).
		Where("id = ? AND notification_sent = ?", id, false).
		UpdateColumn("notify_attempts", gorm.Expr("notify_attempts + ?", 1)).Error
}

func (r *CropRepository) CountsForUser(ctx context.Context, userID uint, now time.Time) (CropCounts, error) {
	var counts CropCounts
	now = now.UTC()
	err := r.db.WithContext(ctx).
		Model(&models.UserCrop{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_harvested = ? AND harvest_ready_at <= ? THEN 1 ELSE 0 END), 0) AS ready,
			COALESCE(SUM(CASE WHEN is_harvested = ? AND harvest_ready_at > ? THEN 1 ELSE 0 END), 0) AS growing,
			COALESCE(SUM(CASE WHEN is_harvested = ? THEN 1 ELSE 0 END), 0) AS harvested`,
			false, now, false, now, true).
		Where("user_id = ?", userID).
		Scan(&counts).Error
	return counts, err
}

// ListActiveForUser returns the user's unharvested crops, soonest first.
func (r *CropRepository) ListActiveForUser(ctx context.Context, userID uint) ([]models.UserCrop, error) {
	var crops []models.UserCrop
	err := r.db.WithContext(ctx).
		Preload("CropType").
		Where("user_id = ? AND is_harvested = ?", userID, false).
		Order("harvest_ready_at, id").
		Find(&crops).Error
	return crops, err
}

func (r *CropRepository) ListByUser(userID uint, includeHarvested bool) ([]models.UserCrop, error) {
	var crops []models.UserCrop
	db := r.db.Preload("CropType").Where("user_id = ?", userID)
	if !includeHarvested {
		db = db.Where("is_harvested = ?", false)
	}
	err := db.Order("harvest_ready_at, id").Find(&crops).Error
	return crops, err
}
