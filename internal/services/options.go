package services

import (
	"context"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/dedup"
	"github.com/h4ks-com/crop-notifier/internal/metrics"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Option configures the collaborators shared by everything that delivers
// notifications: the scheduled jobs and the request-path services.
type Option func(*deliveryEnv)

type deliveryEnv struct {
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	ledger      dedup.Ledger
	now         func() time.Time
	location    *time.Location
	sendTimeout time.Duration
}

func newDeliveryEnv(component string, opts []Option) deliveryEnv {
	env := deliveryEnv{
		logger:   zerolog.Nop(),
		ledger:   dedup.NopLedger{},
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&env)
	}
	env.logger = env.logger.With().Str("component", component).Logger()
	return env
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *deliveryEnv) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *deliveryEnv) { e.metrics = m }
}

// WithLedger enables duplicate suppression across restarts.
func WithLedger(ledger dedup.Ledger) Option {
	return func(e *deliveryEnv) {
		if ledger != nil {
			e.ledger = ledger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *deliveryEnv) { e.now = now }
}

// WithLocation sets the zone used when rendering times for users.
func WithLocation(loc *time.Location) Option {
	return func(e *deliveryEnv) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(e *deliveryEnv) { e.sendTimeout = d }
}

// send bounds one delivery by the send timeout and traces it.
func (e *deliveryEnv) send(ctx context.Context, sender notifier.Sender, kind string, msg notifier.Message) error {
	if e.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.sendTimeout)
		defer cancel()
	}

	ctx, span := tracing.Tracer().Start(ctx, "notifier.send")
	span.SetAttributes(
		attribute.String("notification.type", kind),
		attribute.String("notification.idempotency_key", msg.IdempotencyKey),
	)
	defer span.End()

	err := sender.Send(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		e.metrics.Notification(kind, "failed")
		return err
	}
	e.metrics.Notification(kind, "sent")
	return nil
}
