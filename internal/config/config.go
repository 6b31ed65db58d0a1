package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	GinMode    string
	Database   DatabaseConfig
	JWT        JWTConfig
	Log        LogConfig
	Notifier   NotifierConfig
	Telegram   TelegramConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Tracing    TracingConfig
	AdminUsers []string
	TestMode   bool
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

type NotifierConfig struct {
	// Channel selects the Sender: telegram, kafka or log.
	Channel      string
	DashboardURL string
	SendTimeout  time.Duration
}

type TelegramConfig struct {
	BotToken      string
	APIEndpoint   string
	// WebhookSecret must match the secret_token given to setWebhook.
	WebhookSecret string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RedisConfig struct {
	Addr           string
	IdempotencyTTL time.Duration
}

type SchedulerConfig struct {
	Timezone             string
	HarvestCheckSchedule string
	DailySummarySchedule string
	CleanupSchedule      string
	RetentionDays        int
	IncludeHarvested     bool
	SummaryListLimit     int
}

type TracingConfig struct {
	JaegerEndpoint string
}

func Load() (*Config, error) {
	godotenv.Load()

	sendTimeout, err := getEnvDuration("SEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idempotencyTTL, err := getEnvDuration("IDEMPOTENCY_TTL", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	retentionDays, err := getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("NOTIFICATION_RETENTION_DAYS must be positive, got %d", retentionDays)
	}
	listLimit, err := getEnvInt("SUMMARY_LIST_LIMIT", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Notifier: NotifierConfig{
			Channel:      strings.ToLower(getEnv("NOTIFIER_CHANNEL", "log")),
			DashboardURL: getEnv("DASHBOARD_URL", ""),
			SendTimeout:  sendTimeout,
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIEndpoint:   getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "crop-notifications"),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			IdempotencyTTL: idempotencyTTL,
		},
		Scheduler: SchedulerConfig{
			Timezone:             getEnv("SCHEDULER_TIMEZONE", "Local"),
			HarvestCheckSchedule: getEnv("HARVEST_CHECK_SCHEDULE", "* * * * *"),
			DailySummarySchedule: getEnv("DAILY_SUMMARY_SCHEDULE", "0 8 * * *"),
			CleanupSchedule:      getEnv("CLEANUP_SCHEDULE", "0 2 * * *"),
			RetentionDays:        retentionDays,
			IncludeHarvested:     getEnv("SCAN_INCLUDE_HARVESTED", "false") == "true",
			SummaryListLimit:     listLimit,
		},
		Tracing: TracingConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		AdminUsers: splitList(os.Getenv("ADMIN_USERS")),
		TestMode:   getEnv("TEST_MODE", "false") == "true",
	}

	switch cfg.Notifier.Channel {
	case "telegram":
		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when NOTIFIER_CHANNEL=telegram")
		}
	case "kafka", "log":
	default:
		return nil, fmt.Errorf("unknown NOTIFIER_CHANNEL %q", cfg.Notifier.Channel)
	}

	return cfg, nil
}

// Location resolves the scheduler timezone used for the daily jobs.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c SchedulerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	items := []string{}
	if value == "" {
		return items
	}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
