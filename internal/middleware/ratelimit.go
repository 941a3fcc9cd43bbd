package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/foxfit/backend/internal/logger"
)

const limiterIdleTTL = 10 * time.Minute

// ActionLimiter is a shared limiter, normally the Redis token bucket.
type ActionLimiter interface {
	AllowAction(ctx context.Context, userID uuid.UUID, action string, rate float64, burst int) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	limiters map[uuid.UUID]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int

	shared ActionLimiter
	action string
}

// NewRateLimiter allows rps events per second per user with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[uuid.UUID]*limiterEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// WithShared consults a cross-instance limiter first and falls back to the
// in-process buckets when it errors.
func (rl *RateLimiter) WithShared(shared ActionLimiter, action string) *RateLimiter {
	rl.shared = shared
	rl.action = action
	return rl
}

func (rl *RateLimiter) getLimiter(userID uuid.UUID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.limiters[userID]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[userID] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Allow reports whether userID may perform one more action now.
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowAction(ctx, userID, rl.action, float64(rl.rate), rl.burst)
		if err == nil {
			return ok
		}
		logger.WithContext(ctx).WithError(err).Warn("shared rate limiter unavailable, using local buckets")
	}
	return rl.getLimiter(userID).Allow()
}

// Sweep drops buckets idle for longer than ttl.
func (rl *RateLimiter) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for id, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Sweep(limiterIdleTTL)
		}
	}
}

// RateLimitMiddleware limits requests per user
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
