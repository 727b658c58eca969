package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-system/models"
)

func TestHoldingsCache_FirstObservation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewHoldingsCache(db)

	holding := redeemableHolding()

	mock.ExpectGet("holding:status:holding-1").RedisNil()
	mock.ExpectSet("holding:status:holding-1",
		[]byte(`{"delivery_status":"not_delivered","consignment_status":"none"}`),
		7*24*time.Hour).SetVal("OK")

	err := cache.CheckAndRecord(context.Background(), holding)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldingsCache_ForwardTransition(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewHoldingsCache(db)

	holding := redeemableHolding()
	holding.ConsignmentStatus = models.ConsignmentActive

	mock.ExpectGet("holding:status:holding-1").
		SetVal(`{"delivery_status":"not_delivered","consignment_status":"pending_review"}`)
	mock.ExpectSet("holding:status:holding-1",
		[]byte(`{"delivery_status":"not_delivered","consignment_status":"active"}`),
		7*24*time.Hour).SetVal("OK")

	err := cache.CheckAndRecord(context.Background(), holding)
	require.NoError(t, err)
}

func TestHoldingsCache_DeliveryReverted(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewHoldingsCache(db)

	holding := redeemableHolding() // not_delivered

	mock.ExpectGet("holding:status:holding-1").
		SetVal(`{"delivery_status":"delivered","consignment_status":"none"}`)
	// The fresh upstream state is stored even though it regressed.
	mock.ExpectSet("holding:status:holding-1",
		[]byte(`{"delivery_status":"not_delivered","consignment_status":"none"}`),
		7*24*time.Hour).SetVal("OK")

	err := cache.CheckAndRecord(context.Background(), holding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldingsCache_SoldResurrected(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewHoldingsCache(db)

	holding := redeemableHolding()
	holding.ConsignmentStatus = models.ConsignmentActive

	mock.ExpectGet("holding:status:holding-1").
		SetVal(`{"delivery_status":"not_delivered","consignment_status":"sold"}`)
	mock.ExpectSet("holding:status:holding-1",
		[]byte(`{"delivery_status":"not_delivered","consignment_status":"active"}`),
		7*24*time.Hour).SetVal("OK")

	err := cache.CheckAndRecord(context.Background(), holding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sold")
}
