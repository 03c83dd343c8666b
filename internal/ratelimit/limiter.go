// Package ratelimit gates comment submissions with fixed-window counters.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"
)

// KeyPrefix namespaces limiter keys in the backing store.
const KeyPrefix = "rl:"

// Store increments and reads fixed-window counters.
type Store interface {
	// Incr adds one to key. The first increment of a window sets the key to
	// expire after window. It returns the new count and the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Get returns the current count and remaining window without incrementing.
	Get(ctx context.Context, key string) (int64, time.Duration, error)
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter enforces per-subject attempt limits.
type Limiter struct {
	store Store
}

// New creates a Limiter backed by store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// SubjectKey identifies who is submitting: the account for authenticated
// actors, otherwise the client IP.
func SubjectKey(actor models.Actor, ip string) string {
	if a, ok := models.AsAuthenticated(actor); ok {
		return "comment:user:" + strconv.FormatUint(uint64(a.ID), 10)
	}
	return "comment:ip:" + ip
}

// Gate records one attempt for key and reports whether it is within limit
// attempts for the current window. Every call counts. A store failure
// denies the attempt and returns the error.
func (l *Limiter) Gate(ctx context.Context, key string, limit int, period time.Duration) (Decision, error) {
	count, ttl, err := l.store.Incr(ctx, KeyPrefix+key, period)
	if err != nil {
		observability.RateLimitDecisions.WithLabelValues("store_error").Inc()
		observability.Logger.WarnContext(ctx, "rate limit store unavailable, denying", "key", key, "error", err)
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}

	d := decide(count, int64(limit), ttl, count <= int64(limit))
	if d.Allowed {
		observability.RateLimitDecisions.WithLabelValues("allowed").Inc()
	} else {
		observability.RateLimitDecisions.WithLabelValues("denied").Inc()
	}
	return d, nil
}

// Peek reports whether one more attempt would currently be allowed without
// consuming quota.
func (l *Limiter) Peek(ctx context.Context, key string, limit int) (Decision, error) {
	count, ttl, err := l.store.Get(ctx, KeyPrefix+key)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}
	return decide(count, int64(limit), ttl, count < int64(limit)), nil
}

func decide(count, limit int64, ttl time.Duration, allowed bool) Decision {
	d := Decision{Allowed: allowed, Count: count}
	if remaining := limit - count; remaining > 0 {
		d.Remaining = remaining
	}
	if !allowed && ttl > 0 {
		d.RetryAfter = ttl
	}
	return d
}
