package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the mutating redemption endpoints with a redis
// fixed-window counter per user (falling back to IP for anonymous calls).
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  int64(limit),
		window: window,
	}
}

// RedemptionRateLimit rejects a caller that submits more redemption
// requests than the window allows. Submissions are at-most-once,
// user-initiated actions; a burst is either a stuck client or abuse.
func (r *RateLimiter) RedemptionRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identity := e.RealIP()
		if e.Auth != nil {
			identity = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		key := fmt.Sprintf("ratelimit:redemption:%s", identity)
		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble should not take the endpoint down.
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}

		if count > r.limit {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return e.Next()
	}
}
