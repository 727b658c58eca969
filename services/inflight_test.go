package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightGuard_Acquire(t *testing.T) {
	db, mock := redismock.NewClientMock()
	guard := NewInflightGuard(db, 30*time.Second)

	mock.ExpectSetNX("redemption:inflight:holding-1", 1, 30*time.Second).SetVal(true)

	ok, err := guard.Acquire(context.Background(), "holding-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInflightGuard_AcquireHeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	guard := NewInflightGuard(db, 30*time.Second)

	mock.ExpectSetNX("redemption:inflight:holding-1", 1, 30*time.Second).SetVal(false)

	ok, err := guard.Acquire(context.Background(), "holding-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInflightGuard_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	guard := NewInflightGuard(db, 30*time.Second)

	mock.ExpectDel("redemption:inflight:holding-1").SetVal(1)

	err := guard.Release(context.Background(), "holding-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInflightGuard_DefaultTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	guard := NewInflightGuard(db, 0)

	mock.ExpectSetNX("redemption:inflight:holding-1", 1, 30*time.Second).SetVal(true)

	ok, err := guard.Acquire(context.Background(), "holding-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
