package services

import (
	"context"
	"errors"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrCropNotFound         = errors.New("crop not found")
	ErrCropAlreadyHarvested = errors.New("crop already harvested")
	ErrCropNotReady         = errors.New("crop is not ready to harvest")
	ErrCropTypeNotFound     = errors.New("crop type not found")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidCropType      = errors.New("invalid crop type")
)

type CropService struct {
	cropRepo     *repository.CropRepository
	cropTypeRepo *repository.CropTypeRepository
	userRepo     *repository.UserRepository
	db           *gorm.DB
	now          func() time.Time
}

func NewCropService(
	cropRepo *repository.CropRepository,
	cropTypeRepo *repository.CropTypeRepository,
	userRepo *repository.UserRepository,
	db *gorm.DB,
) *CropService {
	return &CropService{
		cropRepo:     cropRepo,
		cropTypeRepo: cropTypeRepo,
		userRepo:     userRepo,
		db:           db,
		now:          time.Now,
	}
}

func (s *CropService) Catalog() ([]models.CropType, error) {
	return s.cropTypeRepo.FindAll(true)
}

// Plant records a new planting. The ready time is fixed here and never
// recomputed, even if the catalog entry changes later.
func (s *CropService) Plant(username string, cropTypeID uint, quantity int) (*models.UserCrop, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cropType, err := s.cropTypeRepo.FindByID(cropTypeID)
	if err != nil {
		return nil, err
	}
	if cropType == nil || !cropType.Active {
		return nil, ErrCropTypeNotFound
	}

	plantedAt := s.now().UTC()
	crop := &models.UserCrop{
		UserID:         user.ID,
		CropTypeID:     cropType.ID,
		CropType:       *cropType,
		Quantity:       quantity,
		PlantedAt:      plantedAt,
		HarvestReadyAt: plantedAt.Add(cropType.HarvestDuration()),
	}

	if err := s.cropRepo.Create(crop); err != nil {
		return nil, err
	}
	return crop, nil
}

// Harvest marks a ready crop as collected by its owner.
func (s *CropService) Harvest(username string, cropID uint) (*models.UserCrop, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		crop, err := s.cropRepo.FindByIDForUpdate(tx, cropID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCropNotFound
			}
			return err
		}

		if crop.UserID != user.ID {
			return ErrCropNotFound
		}
		if crop.IsHarvested {
			return ErrCropAlreadyHarvested
		}

		now := s.now().UTC()
		if !crop.ReadyAt(now) {
			return ErrCropNotReady
		}

		updated, err := s.cropRepo.MarkHarvestedInTx(tx, crop.ID, now)
		if err != nil {
			return err
		}
		if !updated {
			return ErrCropAlreadyHarvested
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.cropRepo.FindByID(cropID)
}

func (s *CropService) ListCrops(username string, includeHarvested bool) ([]models.UserCrop, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.cropRepo.ListByUser(user.ID, includeHarvested)
}

func (s *CropService) Overview(ctx context.Context, username string) (repository.CropCounts, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return repository.CropCounts{}, err
	}
	if user == nil {
		return repository.CropCounts{}, ErrUserNotFound
	}
	return s.cropRepo.CountsForUser(ctx, user.ID, s.now())
}

// SaveCropType validates and upserts one catalog entry by name.
func (s *CropService) SaveCropType(cropType *models.CropType) error {
	switch {
	case cropType.Name == "":
		return ErrInvalidCropType
	case cropType.HarvestSeconds <= 0:
		return ErrInvalidCropType
	case cropType.SellPrice < 0:
		return ErrInvalidCropType
	}
	switch cropType.Kind {
	case "":
		cropType.Kind = models.CropKindCrop
	case models.CropKindCrop, models.CropKindTree, models.CropKindBush:
	default:
		return ErrInvalidCropType
	}
	if cropType.GrowSeconds == 0 {
		cropType.GrowSeconds = cropType.HarvestSeconds
	}
	return s.cropTypeRepo.Upsert(cropType)
}
