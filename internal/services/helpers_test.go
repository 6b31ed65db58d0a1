package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/database"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var plantTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db            *gorm.DB
	users         *repository.UserRepository
	crops         *repository.CropRepository
	cropTypes     *repository.CropTypeRepository
	notifications *repository.NotificationRepository
	clock         *testClock
}

func setupNotifierTestDB(t *testing.T) *testEnv {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		crops:         repository.NewCropRepository(db),
		cropTypes:     repository.NewCropTypeRepository(db),
		notifications: repository.NewNotificationRepository(db),
		clock:         &testClock{now: plantTime},
	}
}

func (e *testEnv) addUser(t *testing.T, username, chatID string) *models.User {
	user := &models.User{Username: username, NotificationsEnabled: true}
	if chatID != "" {
		user.TelegramChatID = &chatID
		user.TelegramLinked = true
	}
	require.NoError(t, e.users.Create(user))
	return user
}

func (e *testEnv) addCropType(t *testing.T, name string, seconds int) *models.CropType {
	cropType := &models.CropType{Name: name, Kind: models.CropKindCrop, GrowSeconds: seconds, HarvestSeconds: seconds, SellPrice: 0.5, Active: true}
	require.NoError(t, e.cropTypes.Upsert(cropType))
	return cropType
}

func (e *testEnv) plant(t *testing.T, user *models.User, cropType *models.CropType, at time.Time) *models.UserCrop {
	crop := &models.UserCrop{
		UserID:         user.ID,
		CropTypeID:     cropType.ID,
		Quantity:       1,
		PlantedAt:      at,
		HarvestReadyAt: at.Add(cropType.HarvestDuration()),
	}
	require.NoError(t, e.crops.Create(crop))
	return crop
}

func (e *testEnv) logRows(t *testing.T) []models.Notification {
	var rows []models.Notification
	require.NoError(t, e.db.Order("id").Find(&rows).Error)
	return rows
}

func (e *testEnv) reload(t *testing.T, id uint) *models.UserCrop {
	crop, err := e.crops.FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, crop)
	return crop
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeSender struct {
	mu       sync.Mutex
	messages []notifier.Message
	// fail decides per message whether delivery fails.
	fail  func(notifier.Message) bool
	block bool
}

func (s *fakeSender) Send(ctx context.Context, msg notifier.Message) error {
	if s.block {
		<-ctx.Done()
		return &notifier.DeliveryError{Channel: "fake", ChatID: msg.ChatID, Transient: true, Err: ctx.Err()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil && s.fail(msg) {
		return &notifier.DeliveryError{Channel: "fake", ChatID: msg.ChatID, Transient: true, Err: errors.New("chat service unavailable")}
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSender) sent() []notifier.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifier.Message(nil), s.messages...)
}

func failChat(chatID string) func(notifier.Message) bool {
	return func(msg notifier.Message) bool { return msg.ChatID == chatID }
}

func failText(substr string) func(notifier.Message) bool {
	return func(msg notifier.Message) bool { return strings.Contains(msg.Text, substr) }
}

type fakeLedger struct {
	seen     map[string]bool
	recorded []string
}

func (l *fakeLedger) Seen(_ context.Context, key string) (bool, error) {
	return l.seen[key], nil
}

func (l *fakeLedger) Record(_ context.Context, key string) error {
	l.recorded = append(l.recorded, key)
	return nil
}

// brokenCropStore wraps a real store and fails the configured calls.
type brokenCropStore struct {
	CropStore
	findErr   error
	markErr   error
	countErr  map[uint]error
	premature []models.UserCrop
}

func (s *brokenCropStore) FindReadyUnnotified(ctx context.Context, now time.Time, filter repository.ReadyFilter) ([]models.UserCrop, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.premature != nil {
		return s.premature, nil
	}
	return s.CropStore.FindReadyUnnotified(ctx, now, filter)
}

func (s *brokenCropStore) MarkNotified(ctx context.Context, id uint, at time.Time) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	return s.CropStore.MarkNotified(ctx, id, at)
}

func (s *brokenCropStore) CountsForUser(ctx context.Context, userID uint, now time.Time) (repository.CropCounts, error) {
	if err := s.countErr[userID]; err != nil {
		return repository.CropCounts{}, err
	}
	return s.CropStore.CountsForUser(ctx, userID, now)
}
