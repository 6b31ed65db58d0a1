package database

import (
	"fmt"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const imageBase = "https://sunflower-land.com/images/"

// DefaultCropTypes is the catalog a fresh database starts with.
var DefaultCropTypes = []models.CropType{
	{Name: "Sunflower", Kind: models.CropKindCrop, GrowSeconds: 60, HarvestSeconds: 60, SellPrice: 0.02, ImageURL: imageBase + "crops/sunflower.png", Description: "Basic sunflower, quick to grow and harvest"},
	{Name: "Potato", Kind: models.CropKindCrop, GrowSeconds: 300, HarvestSeconds: 300, SellPrice: 0.14, ImageURL: imageBase + "crops/potato.png", Description: "Potato with a medium growing time"},
	{Name: "Pumpkin", Kind: models.CropKindCrop, GrowSeconds: 1800, HarvestSeconds: 1800, SellPrice: 0.8, ImageURL: imageBase + "crops/pumpkin.png", Description: "Pumpkin, slow to grow but valuable"},
	{Name: "Carrot", Kind: models.CropKindCrop, GrowSeconds: 60, HarvestSeconds: 60, SellPrice: 0.02, ImageURL: imageBase + "crops/carrot.png", Description: "Carrot, a basic crop"},
	{Name: "Cabbage", Kind: models.CropKindCrop, GrowSeconds: 900, HarvestSeconds: 900, SellPrice: 0.4, ImageURL: imageBase + "crops/cabbage.png", Description: "Cabbage with a long growing time"},
	{Name: "Beetroot", Kind: models.CropKindCrop, GrowSeconds: 300, HarvestSeconds: 300, SellPrice: 0.14, ImageURL: imageBase + "crops/beetroot.png", Description: "Beetroot, a medium crop"},
	{Name: "Cauliflower", Kind: models.CropKindCrop, GrowSeconds: 1800, HarvestSeconds: 1800, SellPrice: 0.8, ImageURL: imageBase + "crops/cauliflower.png", Description: "Cauliflower, slow to grow"},
	{Name: "Parsnip", Kind: models.CropKindCrop, GrowSeconds: 900, HarvestSeconds: 900, SellPrice: 0.4, ImageURL: imageBase + "crops/parsnip.png", Description: "Parsnip with a long growing time"},
	{Name: "Eggplant", Kind: models.CropKindCrop, GrowSeconds: 1800, HarvestSeconds: 1800, SellPrice: 0.8, ImageURL: imageBase + "crops/eggplant.png", Description: "Eggplant, slow to grow"},
	{Name: "Corn", Kind: models.CropKindCrop, GrowSeconds: 900, HarvestSeconds: 900, SellPrice: 0.4, ImageURL: imageBase + "crops/corn.png", Description: "Corn with a long growing time"},
	{Name: "Radish", Kind: models.CropKindCrop, GrowSeconds: 60, HarvestSeconds: 60, SellPrice: 0.02, ImageURL: imageBase + "crops/radish.png", Description: "Radish, quick to grow"},
	{Name: "Wheat", Kind: models.CropKindCrop, GrowSeconds: 300, HarvestSeconds: 300, SellPrice: 0.14, ImageURL: imageBase + "crops/wheat.png", Description: "Wheat, a medium crop"},
	{Name: "Kale", Kind: models.CropKindCrop, GrowSeconds: 1800, HarvestSeconds: 1800, SellPrice: 0.8, ImageURL: imageBase + "crops/kale.png", Description: "Kale, slow to grow"},
	{Name: "Apple Tree", Kind: models.CropKindTree, GrowSeconds: 3600, HarvestSeconds: 3600, SellPrice: 1.5, ImageURL: imageBase + "fruit/apple.png", Description: "Apple tree, gives fruit every hour"},
	{Name: "Orange Tree", Kind: models.CropKindTree, GrowSeconds: 3600, HarvestSeconds: 3600, SellPrice: 1.5, ImageURL: imageBase + "fruit/orange.png", Description: "Orange tree, gives fruit every hour"},
	{Name: "Blueberry Bush", Kind: models.CropKindBush, GrowSeconds: 1800, HarvestSeconds: 1800, SellPrice: 0.8, ImageURL: imageBase + "fruit/blueberry.png", Description: "Blueberry bush"},
	{Name: "Banana Plant", Kind: models.CropKindTree, GrowSeconds: 3600, HarvestSeconds: 3600, SellPrice: 1.5, ImageURL: imageBase + "fruit/banana.png", Description: "Banana plant, gives fruit every hour"},
}

// SeedCropTypes inserts the default catalog, leaving existing entries untouched.
func SeedCropTypes(db *gorm.DB) error {
	crops := make([]models.CropType, len(DefaultCropTypes))
	copy(crops, DefaultCropTypes)
	for i := range crops {
		crops[i].Active = true
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&crops)
	if result.Error != nil {
		return fmt.Errorf("failed to seed crop types: %w", result.Error)
	}

	log.Info().Int64("inserted", result.RowsAffected).Msg("crop catalog seeded")
	return nil
}
