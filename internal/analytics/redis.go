// Package analytics keeps per-vault event counters in Redis, bucketed by
// time window.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PrismoFinance/bounties/internal/event"
)

type Config struct {
	// Window is the bucket width: one minute, five minutes, one hour or
	// one day.
	Window    time.Duration
	Retention time.Duration
}

// RedisSink counts committed events. It is registered as an engine
// observer; write failures are logged and dropped.
type RedisSink struct {
	client redis.Cmdable
	config Config
	logger *slog.Logger
}

func NewRedisSink(client redis.Cmdable, config Config, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{client: client, config: config, logger: logger}
}

// Observe increments one counter per event.
func (s *RedisSink) Observe(ctx context.Context, events []event.Event) {
	if err := s.Write(ctx, events); err != nil {
		s.logger.Warn("analytics write failed", "events", len(events), "error", err)
	}
}

func (s *RedisSink) Write(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, ev := range events {
		key := buildKey(ev.ResourceID, ev.Data.Kind(), ev.Timestamp, s.config.Window)
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.config.Retention)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Count returns the counter for one vault, event kind and bucket.
func (s *RedisSink) Count(ctx context.Context, vaultID uint64, kind event.Kind, at time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(vaultID, kind, at, s.config.Window)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(vaultID uint64, kind event.Kind, t time.Time, window time.Duration) string {
	bucket := truncateToBucket(t, window)
	return "v:" + strconv.FormatUint(vaultID, 10) + ":" + string(kind) + ":" + bucket
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	case 24 * time.Hour:
		return t.Format("20060102")
	default:
		return t.Format("200601021504")
	}
}
