package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medibrief/api/internal/apperror"
)

// RateLimiter counts events per key within a rolling window using Redis
// INCR + EXPIRE. MediBrief runs three independent instances of this type
// (spec.md §4.11): a global tier (~120/min), an auth tier (~10/min), and an
// AI tier (~5/min), each keyed by source address and distinguished by its
// own bucket prefix so their counters never collide.
type RateLimiter struct {
	redis      *redis.Client
	bucket     string
	maxAttempt int
	window     time.Duration
}

// NewRateLimiter creates a rate limiter scoped to the given bucket name.
// maxAttempt is the max requests allowed per key within the given window.
func NewRateLimiter(rdb *redis.Client, bucket string, maxAttempt int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:      rdb,
		bucket:     bucket,
		maxAttempt: maxAttempt,
		window:     window,
	}
}

// RateLimitResult holds the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

func (rl *RateLimiter) key(id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rl.bucket, id)
}

// Check returns whether the given key (typically a source IP) is allowed
// to proceed.
func (rl *RateLimiter) Check(ctx context.Context, id string) (*RateLimitResult, error) {
	key := rl.key(id)

	count, err := rl.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count >= rl.maxAttempt {
		ttl, err := rl.redis.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("getting TTL: %w", err)
		}
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			RetryAt:   time.Now().Add(ttl),
		}, nil
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: rl.maxAttempt - count,
	}, nil
}

// Record records one event for the given key.
func (rl *RateLimiter) Record(ctx context.Context, id string) error {
	key := rl.key(id)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording rate limit: %w", err)
	}

	// Only set the expiry on the first increment.
	if incr.Val() == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}

	return nil
}

// Reset clears the rate limit counter for a given key.
func (rl *RateLimiter) Reset(ctx context.Context, id string) error {
	return rl.redis.Del(ctx, rl.key(id)).Err()
}

// RateLimitMiddleware returns HTTP middleware enforcing this limiter
// against the caller's remote address, responding with a rate-limited
// apperror when exceeded.
func RateLimitMiddleware(rl *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			result, err := rl.Check(r.Context(), ip)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				apperror.Respond(w, apperror.New(apperror.KindRateLimited, "rate limit exceeded, try again later"))
				return
			}
			if err := rl.Record(r.Context(), ip); err != nil {
				logger.Warn("rate limit record failed", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the caller's address, preferring forwarding headers set
// by a trusted reverse proxy over the raw connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}
