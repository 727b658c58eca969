package models

type Action string

const (
	ActionDeliver Action = "deliver"
	ActionConsign Action = "consign"
)

type BlockReason string

const (
	BlockNone                BlockReason = "none"
	BlockCurrentlyConsigning BlockReason = "currently_consigning"
	BlockAlreadySold         BlockReason = "already_sold"
	BlockAlreadyDelivered    BlockReason = "already_delivered"
	BlockTimeLocked          BlockReason = "time_locked"
	BlockNoTickets           BlockReason = "no_tickets"

	// BlockRequiresForcedConfirmation tags a delivery that is allowed but
	// needs an explicit user acknowledgment first (consignment history).
	BlockRequiresForcedConfirmation BlockReason = "requires_forced_confirmation"
)

// ActionEligibility is the verdict for a single action on a holding.
// HoursRemaining is only meaningful when Reason is time_locked.
type ActionEligibility struct {
	Allowed        bool        `json:"allowed"`
	Reason         BlockReason `json:"blocking_reason"`
	HoursRemaining int         `json:"hours_remaining,omitempty"`
}

// EligibilityResult covers both actions plus the advisory default tab.
// DefaultAction follows a fixed precedence and does not imply the action
// is currently allowed.
type EligibilityResult struct {
	Deliver       ActionEligibility `json:"deliver"`
	Consign       ActionEligibility `json:"consign"`
	DefaultAction Action            `json:"default_action"`
}
