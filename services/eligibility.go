package services

import (
	"math"
	"time"

	"redemption-system/models"
)

// TimeLock is the mandatory holding period after acquisition before any
// redemption action is permitted. The boundary is inclusive: a holding is
// unlocked at exactly acquisition + TimeLock.
const TimeLock = 48 * time.Hour

// TimeLockCleared reports whether the holding period has elapsed at now.
func TimeLockCleared(acquiredAt, now time.Time) bool {
	return !now.Before(acquiredAt.Add(TimeLock))
}

// HoursRemaining is the whole hours left on the time lock, rounded up and
// floored at zero.
func HoursRemaining(acquiredAt, now time.Time) int {
	remaining := acquiredAt.Add(TimeLock).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours()))
}

// Evaluate computes, for one holding at one instant, whether delivery and
// consignment are permitted and why not. It is the single rule table both
// the read API and the controller use; first matching reason wins, per
// action:
//
//  1. a listing in flight (active or pending review) blocks everything
//  2. sold is terminal for everything
//  3. deliver: already delivered, then time lock, then the forced
//     confirmation tag for history-bearing holdings
//  4. consign: time lock, then ticket balance
func Evaluate(h models.Holding, now time.Time, ticketCount int) models.EligibilityResult {
	result := models.EligibilityResult{
		Deliver:       evaluateDeliver(h, now),
		Consign:       evaluateConsign(h, now, ticketCount),
		DefaultAction: DefaultAction(h),
	}
	return result
}

func evaluateDeliver(h models.Holding, now time.Time) models.ActionEligibility {
	if h.IsConsigning() {
		return models.ActionEligibility{Reason: models.BlockCurrentlyConsigning}
	}
	if h.ConsignmentStatus == models.ConsignmentSold {
		return models.ActionEligibility{Reason: models.BlockAlreadySold}
	}
	if h.DeliveryStatus == models.DeliveryDelivered {
		return models.ActionEligibility{Reason: models.BlockAlreadyDelivered}
	}
	if !TimeLockCleared(h.AcquiredAt, now) {
		return models.ActionEligibility{
			Reason:         models.BlockTimeLocked,
			HoursRemaining: HoursRemaining(h.AcquiredAt, now),
		}
	}
	if h.HasConsignmentHistory() {
		// Allowed, but only through the forced-redemption path: the caller
		// must obtain an explicit acknowledgment before submitting.
		return models.ActionEligibility{Allowed: true, Reason: models.BlockRequiresForcedConfirmation}
	}
	return models.ActionEligibility{Allowed: true, Reason: models.BlockNone}
}

func evaluateConsign(h models.Holding, now time.Time, ticketCount int) models.ActionEligibility {
	if h.IsConsigning() {
		return models.ActionEligibility{Reason: models.BlockCurrentlyConsigning}
	}
	if h.ConsignmentStatus == models.ConsignmentSold {
		return models.ActionEligibility{Reason: models.BlockAlreadySold}
	}
	if !TimeLockCleared(h.AcquiredAt, now) {
		return models.ActionEligibility{
			Reason:         models.BlockTimeLocked,
			HoursRemaining: HoursRemaining(h.AcquiredAt, now),
		}
	}
	if ticketCount <= 0 {
		return models.ActionEligibility{Reason: models.BlockNoTickets}
	}
	return models.ActionEligibility{Allowed: true, Reason: models.BlockNone}
}

// DefaultAction picks the tab to preselect for a holding. Fixed
// precedence, independent of evaluated eligibility.
func DefaultAction(h models.Holding) models.Action {
	if h.IsConsigning() || h.ConsignmentStatus == models.ConsignmentSold || h.HasConsignmentHistory() {
		return models.ActionDeliver
	}
	if h.DeliveryStatus == models.DeliveryNotDelivered {
		return models.ActionDeliver
	}
	if h.ConsignmentStatus == models.ConsignmentNone {
		return models.ActionConsign
	}
	return models.ActionDeliver
}
