package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/h4ks-com/crop-notifier/internal/config"
	"github.com/h4ks-com/crop-notifier/internal/database"
	"github.com/h4ks-com/crop-notifier/internal/dedup"
	"github.com/h4ks-com/crop-notifier/internal/logging"
	"github.com/h4ks-com/crop-notifier/internal/metrics"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const serviceName = "crop-notifier"

// app holds everything serve and run-job share.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	db      *gorm.DB
	metrics *metrics.Metrics
	harness *scheduler.Harness
	// bot is set when notifications go out through Telegram.
	bot *notifier.TelegramSender

	cropService         *services.CropService
	userService         *services.UserService
	notificationService *services.NotificationService

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	if err := a.init(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := tracing.InitTracerProvider(serviceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}

	a.db, err = database.Connect(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if err := database.Migrate(a.db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.SeedCropTypes(a.db); err != nil {
		return fmt.Errorf("failed to seed crop types: %w", err)
	}

	sender, err := notifier.New(cfg, logging.Component(logger, "notifier"))
	if err != nil {
		return fmt.Errorf("failed to create %s sender: %w", cfg.Notifier.Channel, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return notifier.Close(sender) })
	if bot, ok := sender.(*notifier.TelegramSender); ok {
		a.bot = bot
	}

	var ledger dedup.Ledger = dedup.NopLedger{}
	if cfg.Redis.Addr != "" {
		client, err := dedup.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		ledger = dedup.NewRedisLedger(client, cfg.Redis.IdempotencyTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("idempotency ledger enabled")
	}

	userRepo := repository.NewUserRepository(a.db)
	cropRepo := repository.NewCropRepository(a.db)
	cropTypeRepo := repository.NewCropTypeRepository(a.db)
	notificationRepo := repository.NewNotificationRepository(a.db)

	common := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(a.metrics),
		services.WithLocation(loc),
		services.WithSendTimeout(cfg.Notifier.SendTimeout),
	}

	jobs := services.Jobs{
		Scanner: services.NewReadinessScanner(cropRepo, notificationRepo, sender,
			repository.ReadyFilter{IncludeHarvested: cfg.Scheduler.IncludeHarvested},
			append(common, services.WithLedger(ledger))...),
		Summary: services.NewDailySummaryJob(userRepo, cropRepo, notificationRepo, sender,
			cfg.Scheduler.SummaryListLimit, common...),
		Cleanup: services.NewCleanupJob(notificationRepo, cfg.Scheduler.Retention(), common...),
	}

	a.harness = scheduler.New(
		scheduler.WithLocation(loc),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(a.metrics),
	)
	if err := jobs.Register(a.harness, cfg.Scheduler); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}

	a.cropService = services.NewCropService(cropRepo, cropTypeRepo, userRepo, a.db)
	a.userService = services.NewUserService(userRepo)
	a.notificationService = services.NewNotificationService(userRepo, notificationRepo, sender, common...)

	return nil
}

// Close stops the harness and releases resources in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.harness != nil {
		if err := a.harness.StopAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}
