package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NOTIFIER_CHANNEL", "")
	t.Setenv("ADMIN_USERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "log", cfg.Notifier.Channel)
	assert.Equal(t, 10*time.Second, cfg.Notifier.SendTimeout)
	assert.Equal(t, "* * * * *", cfg.Scheduler.HarvestCheckSchedule)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.DailySummarySchedule)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.CleanupSchedule)
	assert.Equal(t, 30, cfg.Scheduler.RetentionDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Scheduler.Retention())
	assert.False(t, cfg.Scheduler.IncludeHarvested)
	assert.Empty(t, cfg.AdminUsers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NOTIFIER_CHANNEL", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ADMIN_USERS", "alice, bob")
	t.Setenv("SEND_TIMEOUT", "3s")
	t.Setenv("NOTIFICATION_RETENTION_DAYS", "7")
	t.Setenv("SCAN_INCLUDE_HARVESTED", "true")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Notifier.Channel)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"alice", "bob"}, cfg.AdminUsers)
	assert.Equal(t, 3*time.Second, cfg.Notifier.SendTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Scheduler.Retention())
	assert.True(t, cfg.Scheduler.IncludeHarvested)
	assert.Equal(t, "s3cret", cfg.Telegram.WebhookSecret)
}

func TestLoad_TelegramRequiresToken(t *testing.T) {
	t.Setenv("NOTIFIER_CHANNEL", "telegram")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("NOTIFIER_CHANNEL", "pigeon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("NOTIFIER_CHANNEL", "log")
	t.Setenv("SEND_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SEND_TIMEOUT", "")
	t.Setenv("NOTIFICATION_RETENTION_DAYS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestSchedulerConfig_Location(t *testing.T) {
	loc, err := SchedulerConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = SchedulerConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = SchedulerConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
