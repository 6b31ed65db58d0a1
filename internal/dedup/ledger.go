// Package dedup remembers which notifications were already delivered so a
// crash between a successful send and the flag write does not resend them.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// namespace for idempotency keys; changing it invalidates every stored key.
var namespace = uuid.MustParse("5f1c7a2e-3b0d-4c8e-9a61-2d7e4b9f0c13")

type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
}

// Key derives a stable token for one logical notification. Parts are joined
// with ":" so ("a", 12) and ("a1", 2) never collide.
func Key(parts ...any) string {
	fields := make([]string, len(parts))
	for i, part := range parts {
		fields[i] = fmt.Sprint(part)
	}
	return uuid.NewSHA1(namespace, []byte(strings.Join(fields, ":"))).String()
}

// NopLedger never remembers anything.
type NopLedger struct{}

func (NopLedger) Seen(context.Context, string) (bool, error) { return false, nil }
func (NopLedger) Record(context.Context, string) error       { return nil }

type RedisLedger struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisLedger(client redis.Cmdable, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl, prefix: "crop-notifier:sent:"}
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, key string) error {
	err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
	if err != nil {
		return fmt.Errorf("idempotency record failed: %w", err)
	}
	return nil
}

// Connect opens a client and checks the server answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
