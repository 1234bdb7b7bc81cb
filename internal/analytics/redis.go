// Package analytics keeps per-time-bucket counters of reload outcomes in Redis.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/devtrigger/internal/domain"
)

const (
	DefaultWindow    = time.Minute
	DefaultRetention = 24 * time.Hour

	writeTimeout = 500 * time.Millisecond
)

type RedisSink struct {
	client    *redis.Client
	target    string
	window    time.Duration
	retention time.Duration
}

// NewRedisSink counts outcomes for target (the process pattern).
func NewRedisSink(client *redis.Client, target string, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{
		client:    client,
		target:    target,
		window:    DefaultWindow,
		retention: retention,
	}
}

// WithWindow sets the bucket width: 1m, 5m or 1h.
// Zero keeps the default.
func (s *RedisSink) WithWindow(window time.Duration) *RedisSink {
	if window > 0 {
		s.window = window
	}
	return s
}

// Report records the outcome as a best-effort side effect. Errors are logged.
func (s *RedisSink) Report(o domain.ReloadOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.Write(ctx, o); err != nil {
		log.Printf("analytics: event=%s: %v", o.Event.ID, err)
	}
}

func (s *RedisSink) Write(ctx context.Context, o domain.ReloadOutcome) error {
	at := o.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	key := buildKey(s.target, o.Class(), at, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Count returns the counter for class in the bucket containing at.
func (s *RedisSink) Count(ctx context.Context, class domain.OutcomeClass, at time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(s.target, class, at, s.window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func buildKey(target string, class domain.OutcomeClass, t time.Time, window time.Duration) string {
	return fmt.Sprintf("dt:%s:%s:%s", target, class, truncateToBucket(t, window))
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
	default:
		return t.Format("200601021504")
	}
}
