package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"redemption-system/internal/status"
)

const ledgerTTL = 24 * time.Hour

// TicketLedger caches the per-user consignment ticket balance as last
// reported by the holdings source. The server decrements on accepted
// consignments; this cache is read-only and is replaced wholesale on
// refresh, never decremented locally.
type TicketLedger struct {
	Redis *redis.Client
}

func NewTicketLedger(redisClient *redis.Client) *TicketLedger {
	return &TicketLedger{Redis: redisClient}
}

func ledgerKey(userID string) string {
	return fmt.Sprintf("tickets:balance:%s", userID)
}

// Refresh replaces the cached balance with the server-reported value.
func (l *TicketLedger) Refresh(ctx context.Context, userID string, count int) error {
	if count < 0 {
		return fmt.Errorf("ledger: negative balance %d for user %s", count, userID)
	}
	return l.Redis.Set(ctx, ledgerKey(userID), count, ledgerTTL).Err()
}

// Count returns the cached balance, or ErrNoLedgerEntry when the user has
// never been refreshed (callers should fetch holdings first).
func (l *TicketLedger) Count(ctx context.Context, userID string) (int, error) {
	count, err := l.Redis.Get(ctx, ledgerKey(userID)).Int()
	if err == redis.Nil {
		return 0, status.ErrNoLedgerEntry
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Invalidate drops the cached balance, forcing the next read through a
// holdings fetch.
func (l *TicketLedger) Invalidate(ctx context.Context, userID string) error {
	return l.Redis.Del(ctx, ledgerKey(userID)).Err()
}
