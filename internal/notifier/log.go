package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes notifications to the log instead of a chat. Used for local runs.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Channel: "log", ChatID: msg.ChatID, Transient: true, Err: err}
	}
	s.logger.Info().
		Str("chat_id", msg.ChatID).
		Str("title", msg.Title).
		Str("idempotency_key", msg.IdempotencyKey).
		Msg(msg.Text)
	return nil
}
