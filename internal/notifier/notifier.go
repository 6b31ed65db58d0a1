// Package notifier delivers rendered notification text to a user's chat.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/h4ks-com/crop-notifier/internal/config"
	"github.com/rs/zerolog"
)

type Message struct {
	ChatID string
	Title  string
	// Text is HTML formatted.
	Text string
	// IdempotencyKey is stable for one logical notification so downstream
	// consumers can drop duplicates.
	IdempotencyKey string
	// CropID is set on harvest-ready messages so the chat can offer a
	// "harvested" action.
	CropID uint
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError is the only error type a Sender returns.
type DeliveryError struct {
	Channel   string
	ChatID    string
	Transient bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s delivery to %s failed (%s): %v", e.Channel, e.ChatID, kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a retry on a later tick may succeed.
// Errors of unknown origin count as transient.
func IsTransient(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Transient
	}
	return err != nil
}

// New builds the sender selected by cfg.Notifier.Channel.
func New(cfg *config.Config, logger zerolog.Logger) (Sender, error) {
	switch cfg.Notifier.Channel {
	case "telegram":
		return NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, nil, cfg.Notifier.DashboardURL)
	case "kafka":
		return NewKafkaSender(NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier channel %q", cfg.Notifier.Channel)
	}
}

// Close releases the sender's resources when it holds any.
func Close(sender Sender) error {
	if c, ok := sender.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
