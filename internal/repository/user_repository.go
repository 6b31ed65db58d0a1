package repository

import (
	"context"
	"errors"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByChatID(chatID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("telegram_chat_id = ?", chatID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// FindReachable lists users that want notifications and have a chat handle.
func (r *UserRepository) FindReachable(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("notifications_enabled = ?", true).
		Where("telegram_chat_id IS NOT NULL AND telegram_chat_id <> ''").
		Order("id").
		Find(&users).Error
	return users, err
}

// FindLinked lists every user with a chat handle, including those who muted
// harvest notifications.
func (r *UserRepository) FindLinked(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("telegram_chat_id IS NOT NULL AND telegram_chat_id <> ''").
		Order("id").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) FindAll() ([]models.User, error) {
	var users []models.User
	err := r.db.Order("id").Find(&users).Error
	return users, err
}
