package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHolding() Holding {
	return Holding{
		ID:                "holding-1",
		UserID:            "user-1",
		Price:             decimal.NewFromInt(120),
		AcquiredAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DeliveryStatus:    DeliveryNotDelivered,
		ConsignmentStatus: ConsignmentNone,
	}
}

func TestHasConsignmentHistory(t *testing.T) {
	tests := []struct {
		status   ConsignmentStatus
		expected bool
	}{
		{ConsignmentNone, false},
		{ConsignmentPendingReview, true},
		{ConsignmentActive, true},
		{ConsignmentFailed, true},
		{ConsignmentSold, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := sampleHolding()
			h.ConsignmentStatus = tt.status
			assert.Equal(t, tt.expected, h.HasConsignmentHistory())
		})
	}
}

func TestIsConsigning(t *testing.T) {
	tests := []struct {
		status   ConsignmentStatus
		expected bool
	}{
		{ConsignmentNone, false},
		{ConsignmentPendingReview, true},
		{ConsignmentActive, true},
		{ConsignmentFailed, false},
		{ConsignmentSold, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := sampleHolding()
			h.ConsignmentStatus = tt.status
			assert.Equal(t, tt.expected, h.IsConsigning())
		})
	}
}

func TestHoldingValidate(t *testing.T) {
	assert.NoError(t, sampleHolding().Validate())

	missing := sampleHolding()
	missing.ID = ""
	assert.Error(t, missing.Validate())

	noTime := sampleHolding()
	noTime.AcquiredAt = time.Time{}
	assert.Error(t, noTime.Validate())

	badDelivery := sampleHolding()
	badDelivery.DeliveryStatus = "shipped"
	assert.Error(t, badDelivery.Validate())

	badConsignment := sampleHolding()
	badConsignment.ConsignmentStatus = "listed"
	assert.Error(t, badConsignment.Validate())
}

func TestValidateTransition(t *testing.T) {
	base := sampleHolding()

	t.Run("id mismatch", func(t *testing.T) {
		other := sampleHolding()
		other.ID = "holding-2"
		require.Error(t, ValidateTransition(base, other))
	})

	t.Run("delivery never reverts", func(t *testing.T) {
		prev := sampleHolding()
		prev.DeliveryStatus = DeliveryDelivered
		next := sampleHolding()

		err := ValidateTransition(prev, next)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reverted")

		next.DeliveryStatus = DeliveryDelivered
		assert.NoError(t, ValidateTransition(prev, next))
	})

	t.Run("sold is terminal", func(t *testing.T) {
		prev := sampleHolding()
		prev.ConsignmentStatus = ConsignmentSold

		for _, status := range []ConsignmentStatus{ConsignmentNone, ConsignmentPendingReview, ConsignmentActive, ConsignmentFailed} {
			next := sampleHolding()
			next.ConsignmentStatus = status
			assert.Error(t, ValidateTransition(prev, next), string(status))
		}

		next := sampleHolding()
		next.ConsignmentStatus = ConsignmentSold
		assert.NoError(t, ValidateTransition(prev, next))
	})

	t.Run("history never clears", func(t *testing.T) {
		prev := sampleHolding()
		prev.ConsignmentStatus = ConsignmentFailed
		next := sampleHolding() // back to none

		err := ValidateTransition(prev, next)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "history")
	})

	t.Run("normal lifecycle", func(t *testing.T) {
		prev := sampleHolding()
		next := sampleHolding()
		next.ConsignmentStatus = ConsignmentPendingReview
		assert.NoError(t, ValidateTransition(prev, next))

		prev.ConsignmentStatus = ConsignmentActive
		next.ConsignmentStatus = ConsignmentSold
		assert.NoError(t, ValidateTransition(prev, next))
	})
}
