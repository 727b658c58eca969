package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InflightGuard allows at most one redemption request per holding at a
// time. A second submit for the same holding while one is pending is
// rejected locally instead of reaching the network. The TTL is a backstop
// for a crashed request that never released its key.
type InflightGuard struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewInflightGuard(redisClient *redis.Client, ttl time.Duration) *InflightGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InflightGuard{Redis: redisClient, TTL: ttl}
}

func inflightKey(holdingID string) string {
	return fmt.Sprintf("redemption:inflight:%s", holdingID)
}

// Acquire claims the holding, returning false when a request is already
// in flight.
func (g *InflightGuard) Acquire(ctx context.Context, holdingID string) (bool, error) {
	return g.Redis.SetNX(ctx, inflightKey(holdingID), 1, g.TTL).Result()
}

// Release frees the holding for the next request.
func (g *InflightGuard) Release(ctx context.Context, holdingID string) error {
	return g.Redis.Del(ctx, inflightKey(holdingID)).Err()
}
