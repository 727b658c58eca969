package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-system/internal/status"
)

func TestTicketLedger_Refresh(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewTicketLedger(db)

	mock.ExpectSet("tickets:balance:user-1", 3, 24*time.Hour).SetVal("OK")

	err := ledger.Refresh(context.Background(), "user-1", 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketLedger_RefreshRejectsNegative(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewTicketLedger(db)

	err := ledger.Refresh(context.Background(), "user-1", -1)
	require.Error(t, err)
	// Nothing written on a rejected refresh.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketLedger_Count(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewTicketLedger(db)

	mock.ExpectGet("tickets:balance:user-1").SetVal("5")

	count, err := ledger.Count(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketLedger_CountMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewTicketLedger(db)

	mock.ExpectGet("tickets:balance:user-2").RedisNil()

	_, err := ledger.Count(context.Background(), "user-2")
	assert.ErrorIs(t, err, status.ErrNoLedgerEntry)
}

func TestTicketLedger_Invalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewTicketLedger(db)

	mock.ExpectDel("tickets:balance:user-1").SetVal(1)

	err := ledger.Invalidate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
