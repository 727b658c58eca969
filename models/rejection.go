package models

import "fmt"

type RejectionReason string

const (
	RejectTimeLocked          RejectionReason = "time_locked"
	RejectNoTickets           RejectionReason = "no_tickets"
	RejectCurrentlyConsigning RejectionReason = "currently_consigning"
	RejectAlreadySold         RejectionReason = "already_sold"
	RejectAlreadyDelivered    RejectionReason = "already_delivered"
	RejectNeedsConfirmation   RejectionReason = "needs_confirmation"
	RejectInvalidPrice        RejectionReason = "invalid_price"
	RejectAlreadyInProgress   RejectionReason = "already_in_progress"
	RejectNotAuthenticated    RejectionReason = "not_authenticated"
	RejectRemote              RejectionReason = "remote"
)

// Rejection is a refused redemption request. Local rejections are computed
// entirely in this service and never reach the network; remote ones carry
// the upstream message verbatim.
type Rejection struct {
	Local          bool            `json:"local"`
	Reason         RejectionReason `json:"reason"`
	Message        string          `json:"message,omitempty"`
	HoursRemaining int             `json:"hours_remaining,omitempty"`
}

func (r *Rejection) Error() string {
	if r.Local {
		return fmt.Sprintf("redemption rejected: %s", r.Reason)
	}
	return fmt.Sprintf("redemption rejected upstream: %s", r.Message)
}

// NewLocalRejection builds a client-side rejection for the given reason.
func NewLocalRejection(reason RejectionReason) *Rejection {
	return &Rejection{Local: true, Reason: reason}
}

// NewRemoteRejection wraps an opaque upstream failure message.
func NewRemoteRejection(message string) *Rejection {
	return &Rejection{Local: false, Reason: RejectRemote, Message: message}
}

// ReasonForBlock maps an evaluator block to its rejection reason.
func ReasonForBlock(b BlockReason) RejectionReason {
	switch b {
	case BlockCurrentlyConsigning:
		return RejectCurrentlyConsigning
	case BlockAlreadySold:
		return RejectAlreadySold
	case BlockAlreadyDelivered:
		return RejectAlreadyDelivered
	case BlockTimeLocked:
		return RejectTimeLocked
	case BlockNoTickets:
		return RejectNoTickets
	case BlockRequiresForcedConfirmation:
		return RejectNeedsConfirmation
	}
	return RejectionReason(b)
}

// Ack is a successful redemption submission. RefreshRequired is always
// true: the server is authoritative and local state must be refetched.
type Ack struct {
	HoldingID       string `json:"holding_id"`
	Action          Action `json:"action"`
	ReferenceID     string `json:"reference_id"`
	Message         string `json:"message,omitempty"`
	RefreshRequired bool   `json:"refresh_required"`
}
