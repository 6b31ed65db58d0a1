package services

import (
	"errors"
	"regexp"
	"strings"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidChatID     = errors.New("invalid chat id")
	ErrChatAlreadyLinked = errors.New("chat is linked to another user")
	ErrTelegramNotLinked = errors.New("telegram is not linked")
	chatIDPattern        = regexp.MustCompile(`^(-?[0-9]{1,20}|@[A-Za-z0-9_]{5,32})$`)
)

type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetOrCreate returns the user, creating it with notifications on.
func (s *UserService) GetOrCreate(username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &models.User{
			Username:             username,
			NotificationsEnabled: true,
		}
		err = s.userRepo.Create(user)
		if err != nil {
			return nil, err
		}
	}

	return user, nil
}

func (s *UserService) LinkTelegram(username, chatID, telegramUsername string) (*models.User, error) {
	chatID = strings.TrimSpace(chatID)
	if !chatIDPattern.MatchString(chatID) {
		return nil, ErrInvalidChatID
	}

	user, err := s.GetOrCreate(username)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRepo.FindByChatID(chatID)
	if err != nil {
		return nil, err
	}
	if owner != nil && owner.ID != user.ID {
		return nil, ErrChatAlreadyLinked
	}

	user.TelegramChatID = &chatID
	user.TelegramUsername = strings.TrimPrefix(strings.TrimSpace(telegramUsername), "@")
	user.TelegramLinked = true
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UnlinkTelegram(username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.TelegramChatID = nil
	user.TelegramUsername = ""
	user.TelegramLinked = false
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByChat resolves the account that a chat is linked to.
func (s *UserService) FindByChat(chatID string) (*models.User, error) {
	user, err := s.userRepo.FindByChatID(strings.TrimSpace(chatID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTelegramNotLinked
	}
	return user, nil
}

// UnlinkChat detaches whichever account the chat is linked to.
func (s *UserService) UnlinkChat(chatID string) (*models.User, error) {
	user, err := s.FindByChat(chatID)
	if err != nil {
		return nil, err
	}
	return s.UnlinkTelegram(user.Username)
}

func (s *UserService) SetNotificationsEnabled(username string, enabled bool) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.NotificationsEnabled = enabled
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers() ([]models.User, error) {
	return s.userRepo.FindAll()
}
