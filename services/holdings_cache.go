package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"redemption-system/models"
)

const snapshotTTL = 7 * 24 * time.Hour

// HoldingsCache remembers the last observed status of each holding so a
// refresh that contradicts the state machine (delivery reverting, a sold
// holding coming back, history clearing) is caught and reported instead
// of silently accepted.
type HoldingsCache struct {
	Redis *redis.Client
}

func NewHoldingsCache(redisClient *redis.Client) *HoldingsCache {
	return &HoldingsCache{Redis: redisClient}
}

type holdingSnapshot struct {
	DeliveryStatus    models.DeliveryStatus    `json:"delivery_status"`
	ConsignmentStatus models.ConsignmentStatus `json:"consignment_status"`
}

func snapshotKey(holdingID string) string {
	return fmt.Sprintf("holding:status:%s", holdingID)
}

// CheckAndRecord validates the newly fetched holding against the previous
// observation, then records it. A violated invariant is logged and
// returned; the fresh upstream state still wins and is stored, since the
// server is authoritative.
func (c *HoldingsCache) CheckAndRecord(ctx context.Context, h models.Holding) error {
	var violation error

	data, err := c.Redis.Get(ctx, snapshotKey(h.ID)).Result()
	if err == nil {
		var prev holdingSnapshot
		if err := json.Unmarshal([]byte(data), &prev); err == nil {
			previous := models.Holding{
				ID:                h.ID,
				DeliveryStatus:    prev.DeliveryStatus,
				ConsignmentStatus: prev.ConsignmentStatus,
			}
			if err := models.ValidateTransition(previous, h); err != nil {
				slog.Error("holding state moved backwards", "holding", h.ID, "error", err)
				violation = err
			}
		}
	} else if err != redis.Nil {
		return err
	}

	snapshot, err := json.Marshal(holdingSnapshot{
		DeliveryStatus:    h.DeliveryStatus,
		ConsignmentStatus: h.ConsignmentStatus,
	})
	if err != nil {
		return err
	}
	if err := c.Redis.Set(ctx, snapshotKey(h.ID), snapshot, snapshotTTL).Err(); err != nil {
		return err
	}

	return violation
}
