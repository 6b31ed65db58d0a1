package models

import (
	"strings"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username             string     `gorm:"uniqueIndex;not null" json:"username"`
	Email                string     `gorm:"" json:"email,omitempty"`
	TelegramChatID       *string    `gorm:"uniqueIndex;size:64" json:"telegram_chat_id,omitempty"`
	TelegramUsername     string     `gorm:"size:64" json:"telegram_username,omitempty"`
	TelegramLinked       bool       `gorm:"not null;default:false" json:"telegram_linked"`
	NotificationsEnabled bool       `gorm:"not null;index" json:"notifications_enabled"`
	Crops                []UserCrop `gorm:"foreignKey:UserID" json:"-"`
}

// ChatHandle returns the chat the user is notified on, or "" when unlinked.
func (u User) ChatHandle() string {
	if u.TelegramChatID == nil {
		return ""
	}
	return strings.TrimSpace(*u.TelegramChatID)
}

func (u User) Reachable() bool {
	return u.NotificationsEnabled && u.ChatHandle() != ""
}
