package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/h4ks-com/crop-notifier/internal/database"
	"github.com/h4ks-com/crop-notifier/internal/metrics"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []notifier.Message
	err      error
}

func (s *recordingSender) Send(ctx context.Context, msg notifier.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type testServer struct {
	router    *gin.Engine
	db        *gorm.DB
	sender    *recordingSender
	harness   *scheduler.Harness
	crops     *repository.CropRepository
	users     *repository.UserRepository
	linkCodes *auth.TokenIssuer
	botAPI    *fakeBotAPI
}

func setupTestServer(t *testing.T, overrides ...func(*RouterDeps)) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedCropTypes(db))

	userRepo := repository.NewUserRepository(db)
	cropRepo := repository.NewCropRepository(db)
	cropTypeRepo := repository.NewCropTypeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	sender := &recordingSender{}
	harness := scheduler.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		harness.StopAll(ctx)
	})

	linkCodes := auth.NewTokenIssuer("link-secret")
	botAPI, bot := newFakeBotAPI(t)

	deps := RouterDeps{
		DB:                  db,
		Harness:             harness,
		Metrics:             metrics.New(),
		Logger:              zerolog.Nop(),
		Auth:                middleware.NewAuthMiddleware(auth.NewTokenIssuer(""), true),
		Admin:               middleware.NewAdminMiddleware([]string{"admin"}),
		CropService:         services.NewCropService(cropRepo, cropTypeRepo, userRepo, db),
		UserService:         services.NewUserService(userRepo),
		NotificationService: services.NewNotificationService(userRepo, notificationRepo, sender),
		LinkCodes:           linkCodes,
		Bot:                 bot,
	}
	for _, override := range overrides {
		override(&deps)
	}

	return &testServer{
		router:    NewRouter(deps),
		db:        db,
		sender:    sender,
		harness:   harness,
		crops:     cropRepo,
		users:     userRepo,
		linkCodes: linkCodes,
		botAPI:    botAPI,
	}
}

func (s *testServer) do(t *testing.T, method, path, username string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("X-Test-Username", username)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) catalogEntry(t *testing.T, name string) CropTypeResponse {
	rec := s.do(t, http.MethodGet, "/api/v1/crop-types", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, entry := range decode[[]CropTypeResponse](t, rec) {
		if entry.Name == name {
			return entry
		}
	}
	t.Fatalf("crop type %s not in catalog", name)
	return CropTypeResponse{}
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.harness.Register("harvest-check", "* * * * *", func(ctx context.Context) error { return nil }))

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Contains(t, health.Jobs, "harvest-check")
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresAuth(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/crops", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlantAndList(t *testing.T) {
	s := setupTestServer(t)
	carrot := s.catalogEntry(t, "Carrot")

	rec := s.do(t, http.MethodPost, "/api/v1/crops", "farmer", PlantRequest{CropTypeID: carrot.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	planted := decode[CropResponse](t, rec)
	assert.Equal(t, "Carrot", planted.CropType)
	assert.Equal(t, 2, planted.Quantity)
	assert.False(t, planted.Ready)
	assert.False(t, planted.NotificationSent)

	plantedAt, err := time.Parse(time.RFC3339, planted.PlantedAt)
	require.NoError(t, err)
	readyAt, err := time.Parse(time.RFC3339, planted.HarvestReadyAt)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(carrot.HarvestSeconds)*time.Second, readyAt.Sub(plantedAt))

	rec = s.do(t, http.MethodGet, "/api/v1/crops", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]CropResponse](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/crops/overview", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts := decode[repository.CropCounts](t, rec)
	assert.Equal(t, int64(1), counts.Total)
	assert.Equal(t, int64(1), counts.Growing)
}

func TestPlant_Errors(t *testing.T) {
	s := setupTestServer(t)
	carrot := s.catalogEntry(t, "Carrot")

	rec := s.do(t, http.MethodPost, "/api/v1/crops", "farmer", PlantRequest{CropTypeID: 9999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/crops", "farmer", PlantRequest{CropTypeID: carrot.ID, Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/crops", "farmer", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHarvest(t *testing.T) {
	s := setupTestServer(t)
	carrot := s.catalogEntry(t, "Carrot")

	rec := s.do(t, http.MethodGet, "/api/v1/profile", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user, err := s.users.FindByUsername("farmer")
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	ready := &models.UserCrop{UserID: user.ID, CropTypeID: carrot.ID, Quantity: 1, PlantedAt: past.Add(-time.Hour), HarvestReadyAt: past}
	require.NoError(t, s.crops.Create(ready))

	rec = s.do(t, http.MethodPost, "/api/v1/crops/abc/harvest", "farmer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/crops/"+itoa(ready.ID)+"/harvest", "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/crops/"+itoa(ready.ID)+"/harvest", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	harvested := decode[CropResponse](t, rec)
	assert.True(t, harvested.IsHarvested)
	assert.NotNil(t, harvested.HarvestedAt)

	rec = s.do(t, http.MethodPost, "/api/v1/crops/"+itoa(ready.ID)+"/harvest", "farmer", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/crops", "farmer", PlantRequest{CropTypeID: carrot.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	growing := decode[CropResponse](t, rec)
	rec = s.do(t, http.MethodPost, "/api/v1/crops/"+itoa(growing.ID)+"/harvest", "farmer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile_LinkAndToggle(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/profile", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[ProfileResponse](t, rec)
	assert.True(t, profile.NotificationsEnabled)
	assert.False(t, profile.Reachable)

	rec = s.do(t, http.MethodPut, "/api/v1/profile/telegram", "farmer", LinkTelegramRequest{ChatID: "not a chat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/profile/telegram", "farmer", LinkTelegramRequest{ChatID: "123456", TelegramUsername: "@farmer"})
	require.Equal(t, http.StatusOK, rec.Code)
	profile = decode[ProfileResponse](t, rec)
	assert.Equal(t, "123456", profile.TelegramChatID)
	assert.Equal(t, "farmer", profile.TelegramUsername)
	assert.True(t, profile.Reachable)

	rec = s.do(t, http.MethodPut, "/api/v1/profile/telegram", "other", LinkTelegramRequest{ChatID: "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	disabled := false
	rec = s.do(t, http.MethodPut, "/api/v1/profile/notifications", "farmer", NotificationSettingsRequest{Enabled: &disabled})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ProfileResponse](t, rec).Reachable)

	rec = s.do(t, http.MethodPut, "/api/v1/profile/notifications", "farmer", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/profile/telegram", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ProfileResponse](t, rec).TelegramLinked)
}

func TestNotifications_TestSendListStats(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/notifications/test", "farmer", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.do(t, http.MethodGet, "/api/v1/profile", "farmer", nil)
	rec = s.do(t, http.MethodPost, "/api/v1/notifications/test", "farmer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/profile/telegram", "farmer", LinkTelegramRequest{ChatID: "42"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/notifications/test", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[NotificationResponse](t, rec).Sent)
	require.Len(t, s.sender.messages, 1)
	assert.Equal(t, "42", s.sender.messages[0].ChatID)

	s.sender.err = &notifier.DeliveryError{Channel: "test", ChatID: "42", Transient: true, Err: errors.New("down")}
	rec = s.do(t, http.MethodPost, "/api/v1/notifications/test", "farmer", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/notifications?type=test&limit=1", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[NotificationListResponse](t, rec)
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.Limit)

	rec = s.do(t, http.MethodGet, "/api/v1/notifications?type=carrier-pigeon", "farmer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/notifications/stats", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[repository.NotificationStats](t, rec)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.ByType["test"])
}

func TestAdmin_Jobs(t *testing.T) {
	s := setupTestServer(t)

	var runs int
	require.NoError(t, s.harness.Register("cleanup", "0 2 * * *", func(ctx context.Context) error {
		runs++
		return nil
	}))
	require.NoError(t, s.harness.Register("broken", "0 2 * * *", func(ctx context.Context) error {
		return errors.New("store unavailable")
	}))

	rec := s.do(t, http.MethodGet, "/api/v1/admin/jobs", "farmer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/jobs", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[map[string]scheduler.JobStatus](t, rec)
	assert.Contains(t, jobs, "cleanup")
	assert.Contains(t, jobs, "broken")

	rec = s.do(t, http.MethodPost, "/api/v1/admin/jobs/cleanup/run", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, runs)
	assert.Equal(t, int64(1), decode[JobRunResponse](t, rec).Status.Runs)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/jobs/broken/run", "admin", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "store unavailable", decode[JobRunResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/jobs/nope/run", "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_RunJobConflict(t *testing.T) {
	s := setupTestServer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.harness.Register("slow", "0 2 * * *", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.harness.RunNow(context.Background(), "slow")
	}()
	<-started

	rec := s.do(t, http.MethodPost, "/api/v1/admin/jobs/slow/run", "admin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	<-done
}

func TestAdmin_UsersAndCropTypes(t *testing.T) {
	s := setupTestServer(t)
	s.do(t, http.MethodGet, "/api/v1/profile", "farmer", nil)

	rec := s.do(t, http.MethodGet, "/api/v1/admin/users", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]UserListResponse](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, "farmer", users[0].Username)

	rec = s.do(t, http.MethodPut, "/api/v1/admin/crop-types", "admin", CropTypeRequest{Name: "Dragonfruit", Kind: "tree", HarvestSeconds: 7200, SellPrice: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[CropTypeResponse](t, rec).Active)
	assert.Equal(t, 7200, s.catalogEntry(t, "Dragonfruit").HarvestSeconds)

	rec = s.do(t, http.MethodPut, "/api/v1/admin/crop-types", "admin", CropTypeRequest{Name: "Moonberry", Kind: "vine", HarvestSeconds: 60})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/admin/crop-types", "farmer", CropTypeRequest{Name: "Moonberry", HarvestSeconds: 60})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_Broadcast(t *testing.T) {
	s := setupTestServer(t)
	for chatID, username := range map[string]string{"101": "alice", "102": "bob"} {
		rec := s.do(t, http.MethodPut, "/api/v1/profile/telegram", username, LinkTelegramRequest{ChatID: chatID})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	s.do(t, http.MethodGet, "/api/v1/profile", "unlinked", nil)

	rec := s.do(t, http.MethodPost, "/api/v1/admin/broadcast", "alice", BroadcastRequest{Message: "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/broadcast", "admin", map[string]string{"title": "only a title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/broadcast", "admin", BroadcastRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/broadcast", "admin", BroadcastRequest{Title: "Maintenance", Message: "Back at 22:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.BroadcastResult{Users: 2, Sent: 2}, decode[services.BroadcastResult](t, rec))
	require.Len(t, s.sender.messages, 2)
	assert.Contains(t, s.sender.messages[0].Text, "Maintenance")

	var rows []models.Notification
	require.NoError(t, s.db.Where("type = ?", models.NotificationBroadcast).Find(&rows).Error)
	assert.Len(t, rows, 2)
}

func TestProfile_LinkCode(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/profile/telegram/code", "farmer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := decode[LinkCodeResponse](t, rec)
	assert.Equal(t, "/link "+code.Code, code.Command)

	claims, err := s.linkCodes.ValidateLinkCode(code.Code)
	require.NoError(t, err)
	assert.Equal(t, "farmer", claims.Username)

	unconfigured := setupTestServer(t, func(d *RouterDeps) { d.LinkCodes = auth.NewTokenIssuer("") })
	rec = unconfigured.do(t, http.MethodPost, "/api/v1/profile/telegram/code", "farmer", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
