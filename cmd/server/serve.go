package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/h4ks-com/crop-notifier/internal/handlers"
	"github.com/h4ks-com/crop-notifier/internal/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the job scheduler",
	Long: `Start the HTTP API and the scheduler that runs the readiness scan,
the daily summary and the notification log cleanup.

On SIGINT or SIGTERM the server stops accepting requests, no new job runs
start, and running jobs get until --shutdown-timeout to finish.`,
	Example: `  crop-notifier serve
  NOTIFIER_CHANNEL=telegram TELEGRAM_BOT_TOKEN=... crop-notifier serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "How long to wait for running jobs on shutdown")
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TestMode {
		logger.Warn().Msg("test mode enabled, authentication bypassed")
	}

	a.harness.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting crop-notifier server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := server.Shutdown(shutdownCtx)
		closeErr := a.Close(shutdownCtx)
		return errors.Join(httpErr, closeErr)
	})

	return g.Wait()
}

func (a *app) router() *gin.Engine {
	issuer := auth.NewTokenIssuer(a.cfg.JWT.Secret)
	deps := handlers.RouterDeps{
		DB:                  a.db,
		Harness:             a.harness,
		Metrics:             a.metrics,
		Logger:              a.logger,
		Auth:                middleware.NewAuthMiddleware(issuer, a.cfg.TestMode),
		Admin:               middleware.NewAdminMiddleware(a.cfg.AdminUsers),
		CropService:         a.cropService,
		UserService:         a.userService,
		NotificationService: a.notificationService,
		LinkCodes:           issuer,
		WebhookSecret:       a.cfg.Telegram.WebhookSecret,
	}
	if a.bot != nil {
		deps.Bot = a.bot
	}
	return handlers.NewRouter(deps)
}
