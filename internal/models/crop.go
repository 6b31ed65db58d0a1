package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CropKindCrop = "crop"
	CropKindTree = "tree"
	CropKindBush = "bush"
)

// CropType is a catalog entry. Durations are stored in seconds.
type CropType struct {
	gorm.Model
	Name           string  `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Kind           string  `gorm:"not null;index;size:16" json:"kind"`
	GrowSeconds    int     `gorm:"not null" json:"grow_seconds"`
	HarvestSeconds int     `gorm:"not null" json:"harvest_seconds"`
	SellPrice      float64 `gorm:"not null" json:"sell_price"`
	ImageURL       string  `json:"image_url,omitempty"`
	Description    string  `gorm:"type:text" json:"description,omitempty"`
	Active         bool    `gorm:"not null;index" json:"active"`
}

func (c CropType) HarvestDuration() time.Duration {
	return time.Duration(c.HarvestSeconds) * time.Second
}

// UserCrop is one planting. PlantedAt and HarvestReadyAt are fixed at creation.
// IsHarvested is owned by the harvest action. NotificationSent and
// NotifyAttempts are owned by the readiness scanner.
type UserCrop struct {
	gorm.Model
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	User             User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CropTypeID       uint       `gorm:"not null;index" json:"crop_type_id"`
	CropType         CropType   `gorm:"foreignKey:CropTypeID" json:"crop_type"`
	Quantity         int        `gorm:"not null" json:"quantity"`
	PlantedAt        time.Time  `gorm:"not null" json:"planted_at"`
	HarvestReadyAt   time.Time  `gorm:"not null;index" json:"harvest_ready_at"`
	IsHarvested      bool       `gorm:"not null;default:false;index" json:"is_harvested"`
	HarvestedAt      *time.Time `json:"harvested_at,omitempty"`
	NotificationSent bool       `gorm:"not null;default:false;index" json:"notification_sent"`
	NotifiedAt       *time.Time `json:"notified_at,omitempty"`
	NotifyAttempts   int        `gorm:"not null;default:0" json:"notify_attempts"`
}

func (c UserCrop) ReadyAt(now time.Time) bool {
	return !c.HarvestReadyAt.After(now)
}
