package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
	"github.com/h4ks-com/crop-notifier/internal/services"
)

type AdminHandler struct {
	userService         *services.UserService
	notificationService *services.NotificationService
	harness             *scheduler.Harness
	runTimeout          time.Duration
}

func NewAdminHandler(userService *services.UserService, notificationService *services.NotificationService, harness *scheduler.Harness) *AdminHandler {
	return &AdminHandler{
		userService:         userService,
		notificationService: notificationService,
		harness:             harness,
		runTimeout:          5 * time.Minute,
	}
}

type UserListResponse struct {
	Username             string `json:"username"`
	TelegramLinked       bool   `json:"telegram_linked"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Reachable            bool   `json:"reachable"`
	CreatedAt            string `json:"created_at"`
}

type BroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message" binding:"required"`
}

type JobRunResponse struct {
	Job      string              `json:"job"`
	Duration string              `json:"duration"`
	Error    string              `json:"error,omitempty"`
	Status   scheduler.JobStatus `json:"status"`
}

// ListUsers godoc
// @Summary List all users (Admin)
// @Description Get a list of all users and whether they can be notified
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	response := make([]UserListResponse, len(users))
	for i, user := range users {
		response[i] = UserListResponse{
			Username:             user.Username,
			TelegramLinked:       user.TelegramLinked,
			NotificationsEnabled: user.NotificationsEnabled,
			Reachable:            user.Reachable(),
			CreatedAt:            formatTime(user.CreatedAt),
		}
	}

	c.JSON(http.StatusOK, response)
}

// ListJobs godoc
// @Summary Scheduled job status (Admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]scheduler.JobStatus
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/jobs [get]
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.harness.Status())
}

// RunJob godoc
// @Summary Run a job now (Admin)
// @Description Runs the job outside its schedule and waits for it to finish
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Job name"
// @Success 200 {object} JobRunResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} JobRunResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/jobs/{name}/run [post]
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.runTimeout)
	defer cancel()

	start := time.Now()
	err := h.harness.RunNow(ctx, name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, scheduler.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}

	response := JobRunResponse{
		Job:      name,
		Duration: time.Since(start).String(),
		Status:   h.harness.Status()[name],
	}
	if err != nil {
		response.Error = err.Error()
		c.JSON(http.StatusInternalServerError, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Broadcast godoc
// @Summary Message every linked user (Admin)
// @Description Sends an HTML message to every linked chat and logs one row per user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BroadcastRequest true "Message"
// @Success 200 {object} services.BroadcastResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/broadcast [post]
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.runTimeout)
	defer cancel()

	result, err := h.notificationService.Broadcast(ctx, req.Title, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrEmptyBroadcast) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
