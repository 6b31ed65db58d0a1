package repository

import (
	"errors"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CropTypeRepository struct {
	db *gorm.DB
}

func NewCropTypeRepository(db *gorm.DB) *CropTypeRepository {
	return &CropTypeRepository{db: db}
}

func (r *CropTypeRepository) FindAll(activeOnly bool) ([]models.CropType, error) {
	var cropTypes []models.CropType
	db := r.db
	if activeOnly {
		db = db.Where("active = ?", true)
	}
	err := db.Order("kind, harvest_seconds, name").Find(&cropTypes).Error
	return cropTypes, err
}

func (r *CropTypeRepository) FindByID(id uint) (*models.CropType, error) {
	var cropType models.CropType
	err := r.db.First(&cropType, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cropType, nil
}

func (r *CropTypeRepository) FindByName(name string) (*models.CropType, error) {
	var cropType models.CropType
	err := r.db.Where("name = ?", name).First(&cropType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cropType, nil
}

// Upsert inserts the crop type or refreshes the catalog entry with the same name.
// Durations of existing plantings are not touched.
func (r *CropTypeRepository) Upsert(cropType *models.CropType) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "grow_seconds", "harvest_seconds", "sell_price",
			"image_url", "description", "active", "updated_at",
		}),
	}).Create(cropType).Error
}
