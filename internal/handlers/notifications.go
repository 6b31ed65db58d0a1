package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type NotificationResponse struct {
	ID        uint    `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Sent      bool    `json:"sent"`
	SentAt    *string `json:"sent_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
}

func toNotificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Sent:      n.Sent,
		SentAt:    formatTimePtr(n.SentAt),
		CreatedAt: formatTime(n.CreatedAt),
	}
}

// ListNotifications godoc
// @Summary Notification history
// @Description Paged delivery log for the authenticated user, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param type query string false "harvest_ready, daily_summary or test"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} NotificationListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	query := repository.NotificationQuery{
		Type:  models.NotificationType(c.Query("type")),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 20),
	}
	if query.Type != "" && !query.Type.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid notification type"})
		return
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 || query.Limit > 100 {
		query.Limit = 20
	}

	notifications, total, err := h.notificationService.List(c.Request.Context(), middleware.GetUsername(c), query)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	response := NotificationListResponse{
		Notifications: make([]NotificationResponse, len(notifications)),
		Total:         total,
		Page:          query.Page,
		Limit:         query.Limit,
	}
	for i, n := range notifications {
		response.Notifications[i] = toNotificationResponse(n)
	}

	c.JSON(http.StatusOK, response)
}

// Stats godoc
// @Summary Notification statistics
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} repository.NotificationStats
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications/stats [get]
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.notificationService.Stats(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusOK, repository.NotificationStats{ByType: map[string]int64{}})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SendTest godoc
// @Summary Send a test notification
// @Description Deliver a test message to the linked chat. The attempt is logged either way.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} NotificationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /notifications/test [post]
func (h *NotificationHandler) SendTest(c *gin.Context) {
	notification, err := h.notificationService.SendTest(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, services.ErrTelegramNotLinked):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case notification != nil:
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, toNotificationResponse(*notification))
}
