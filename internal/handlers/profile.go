package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/services"
)

const linkCodeTTL = 15 * time.Minute

type ProfileHandler struct {
	userService *services.UserService
	linkCodes   *auth.TokenIssuer
}

func NewProfileHandler(userService *services.UserService, linkCodes *auth.TokenIssuer) *ProfileHandler {
	return &ProfileHandler{userService: userService, linkCodes: linkCodes}
}

type ProfileResponse struct {
	Username             string `json:"username"`
	TelegramChatID       string `json:"telegram_chat_id,omitempty"`
	TelegramUsername     string `json:"telegram_username,omitempty"`
	TelegramLinked       bool   `json:"telegram_linked"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Reachable            bool   `json:"reachable"`
	CreatedAt            string `json:"created_at"`
}

type LinkTelegramRequest struct {
	ChatID           string `json:"chat_id" binding:"required"`
	TelegramUsername string `json:"telegram_username"`
}

type LinkCodeResponse struct {
	Code      string `json:"code"`
	Command   string `json:"command"`
	ExpiresAt string `json:"expires_at"`
}

type NotificationSettingsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func toProfileResponse(user *models.User) ProfileResponse {
	return ProfileResponse{
		Username:             user.Username,
		TelegramChatID:       user.ChatHandle(),
		TelegramUsername:     user.TelegramUsername,
		TelegramLinked:       user.TelegramLinked,
		NotificationsEnabled: user.NotificationsEnabled,
		Reachable:            user.Reachable(),
		CreatedAt:            formatTime(user.CreatedAt),
	}
}

// GetProfile godoc
// @Summary Get my profile
// @Description Chat link and notification settings; creates the user on first access
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetOrCreate(middleware.GetUsername(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(user))
}

// LinkTelegram godoc
// @Summary Link a Telegram chat
// @Description Set the chat that receives harvest notifications
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LinkTelegramRequest true "Chat to link"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profile/telegram [put]
func (h *ProfileHandler) LinkTelegram(c *gin.Context) {
	var req LinkTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	user, err := h.userService.LinkTelegram(middleware.GetUsername(c), req.ChatID, req.TelegramUsername)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidChatID):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, services.ErrChatAlreadyLinked):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(user))
}

// LinkCode godoc
// @Summary Get a Telegram link code
// @Description Short-lived code to send to the bot as "/link <code>"
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} LinkCodeResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /profile/telegram/code [post]
func (h *ProfileHandler) LinkCode(c *gin.Context) {
	user, err := h.userService.GetOrCreate(middleware.GetUsername(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	code, expiresAt, err := h.linkCodes.IssueLinkCode(user.Username, linkCodeTTL)
	if err != nil {
		if errors.Is(err, auth.ErrMissingKey) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "link codes are not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, LinkCodeResponse{
		Code:      code,
		Command:   "/link " + code,
		ExpiresAt: formatTime(expiresAt),
	})
}

// UnlinkTelegram godoc
// @Summary Unlink the Telegram chat
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profile/telegram [delete]
func (h *ProfileHandler) UnlinkTelegram(c *gin.Context) {
	user, err := h.userService.UnlinkTelegram(middleware.GetUsername(c))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(user))
}

// SetNotifications godoc
// @Summary Enable or disable notifications
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body NotificationSettingsRequest true "Settings"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profile/notifications [put]
func (h *ProfileHandler) SetNotifications(c *gin.Context) {
	var req NotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	username := middleware.GetUsername(c)
	if _, err := h.userService.GetOrCreate(username); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.userService.SetNotificationsEnabled(username, *req.Enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(user))
}
