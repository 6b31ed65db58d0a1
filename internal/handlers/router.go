package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/h4ks-com/crop-notifier/internal/metrics"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type RouterDeps struct {
	DB                  *gorm.DB
	Harness             *scheduler.Harness
	Metrics             *metrics.Metrics
	Logger              zerolog.Logger
	Auth                *middleware.AuthMiddleware
	Admin               *middleware.AdminMiddleware
	CropService         *services.CropService
	UserService         *services.UserService
	NotificationService *services.NotificationService
	// LinkCodes signs the codes users send to the bot with /link.
	LinkCodes           *auth.TokenIssuer
	// Bot is nil unless notifications go out through Telegram; the webhook
	// is only mounted when it is set.
	Bot                 ChatBot
	WebhookSecret       string
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))

	healthHandler := NewHealthHandler(d.DB, d.Harness)
	cropHandler := NewCropHandler(d.CropService, d.UserService)
	profileHandler := NewProfileHandler(d.UserService, d.LinkCodes)
	notificationHandler := NewNotificationHandler(d.NotificationService)
	adminHandler := NewAdminHandler(d.UserService, d.NotificationService, d.Harness)

	router.GET("/health", healthHandler.Health)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.Bot != nil {
		telegramHandler := NewTelegramHandler(d.Bot, d.UserService, d.CropService, d.LinkCodes, d.WebhookSecret, d.Logger)
		router.POST("/telegram/webhook", telegramHandler.Webhook)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/crop-types", cropHandler.Catalog)

		authenticated := api.Group("")
		authenticated.Use(d.Auth.RequireAuth())
		{
			authenticated.GET("/crops", cropHandler.ListCrops)
			authenticated.POST("/crops", cropHandler.Plant)
			authenticated.GET("/crops/overview", cropHandler.Overview)
			authenticated.POST("/crops/:id/harvest", cropHandler.Harvest)

			authenticated.GET("/profile", profileHandler.GetProfile)
			authenticated.PUT("/profile/telegram", profileHandler.LinkTelegram)
			authenticated.DELETE("/profile/telegram", profileHandler.UnlinkTelegram)
			authenticated.POST("/profile/telegram/code", profileHandler.LinkCode)
			authenticated.PUT("/profile/notifications", profileHandler.SetNotifications)

			authenticated.GET("/notifications", notificationHandler.ListNotifications)
			authenticated.GET("/notifications/stats", notificationHandler.Stats)
			authenticated.POST("/notifications/test", notificationHandler.SendTest)
		}

		admin := api.Group("/admin")
		admin.Use(d.Auth.RequireAuth(), d.Admin.RequireAdmin())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/jobs/:name/run", adminHandler.RunJob)
			admin.PUT("/crop-types", cropHandler.SaveCropType)
			admin.POST("/broadcast", adminHandler.Broadcast)
		}
	}

	return router
}
