package models

import "time"

type NotificationType string

const (
	NotificationHarvestReady NotificationType = "harvest_ready"
	NotificationDailySummary NotificationType = "daily_summary"
	NotificationTest         NotificationType = "test"
	NotificationBroadcast    NotificationType = "broadcast"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationHarvestReady, NotificationDailySummary, NotificationTest, NotificationBroadcast:
		return true
	}
	return false
}

// Notification is an append-only log row, one per delivery attempt.
// It has no soft-delete column so retention cleanup removes rows for good.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	User      User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type      NotificationType `gorm:"not null;index;size:32" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Sent      bool             `gorm:"not null;index" json:"sent"`
	SentAt    *time.Time       `json:"sent_at,omitempty"`
	CreatedAt time.Time        `gorm:"not null;index" json:"created_at"`
}
