package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const channelKafka = "kafka"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes notifications for a downstream chat gateway.
type KafkaSender struct {
	writer MessageWriter
	now    func() time.Time
}

type outboundEvent struct {
	ChatID         string    `json:"chat_id"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	ParseMode      string    `json:"parse_mode"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CropID         uint      `json:"crop_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSender(writer MessageWriter) *KafkaSender {
	return &KafkaSender{writer: writer, now: time.Now}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(outboundEvent{
		ChatID:         msg.ChatID,
		Title:          msg.Title,
		Text:           msg.Text,
		ParseMode:      "HTML",
		IdempotencyKey: msg.IdempotencyKey,
		CropID:         msg.CropID,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return &DeliveryError{Channel: channelKafka, ChatID: msg.ChatID, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}

	record := kafka.Message{
		Key:   []byte(msg.ChatID),
		Value: payload,
	}
	if msg.IdempotencyKey != "" {
		record.Headers = []kafka.Header{{Key: "idempotency-key", Value: []byte(msg.IdempotencyKey)}}
	}

	if err := s.writer.WriteMessages(ctx, record); err != nil {
		return &DeliveryError{Channel: channelKafka, ChatID: msg.ChatID, Transient: transientKafkaError(err), Err: err}
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

func transientKafkaError(err error) bool {
	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return true
}
