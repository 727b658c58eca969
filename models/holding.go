package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryStatus string

const (
	DeliveryNotDelivered DeliveryStatus = "not_delivered"
	DeliveryDelivered    DeliveryStatus = "delivered"
)

type ConsignmentStatus string

const (
	ConsignmentNone          ConsignmentStatus = "none"
	ConsignmentPendingReview ConsignmentStatus = "pending_review"
	ConsignmentActive        ConsignmentStatus = "active"
	ConsignmentFailed        ConsignmentStatus = "failed"
	ConsignmentSold          ConsignmentStatus = "sold"
)

// Holding is one purchased collectible unit owned by a user. Status fields
// are only ever mutated by the upstream redemption API; this service reads
// them and issues requests.
type Holding struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Name              string            `json:"name,omitempty"`
	Price             decimal.Decimal   `json:"price"`
	AcquiredAt        time.Time         `json:"acquired_at"`
	DeliveryStatus    DeliveryStatus    `json:"delivery_status"`
	ConsignmentStatus ConsignmentStatus `json:"consignment_status"`
}

// HasConsignmentHistory reports whether any consignment attempt ever got
// past submission. The flag never clears, even after a failed listing.
func (h Holding) HasConsignmentHistory() bool {
	return h.ConsignmentStatus != ConsignmentNone
}

// IsConsigning reports whether a listing is currently in flight with the
// marketplace. pending_review blocks exactly like active.
func (h Holding) IsConsigning() bool {
	return h.ConsignmentStatus == ConsignmentActive || h.ConsignmentStatus == ConsignmentPendingReview
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryNotDelivered, DeliveryDelivered:
		return true
	}
	return false
}

func (s ConsignmentStatus) Valid() bool {
	switch s {
	case ConsignmentNone, ConsignmentPendingReview, ConsignmentActive, ConsignmentFailed, ConsignmentSold:
		return true
	}
	return false
}

// Validate checks that a holding fetched from upstream is usable.
func (h Holding) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("holding: missing id")
	}
	if h.AcquiredAt.IsZero() {
		return fmt.Errorf("holding %s: missing acquisition time", h.ID)
	}
	if !h.DeliveryStatus.Valid() {
		return fmt.Errorf("holding %s: unknown delivery status %q", h.ID, h.DeliveryStatus)
	}
	if !h.ConsignmentStatus.Valid() {
		return fmt.Errorf("holding %s: unknown consignment status %q", h.ID, h.ConsignmentStatus)
	}
	return nil
}

// ValidateTransition checks two observations of the same holding taken
// across a refresh. Delivery never reverts and sold is terminal.
func ValidateTransition(prev, next Holding) error {
	if prev.ID != next.ID {
		return fmt.Errorf("holding transition: id mismatch %s -> %s", prev.ID, next.ID)
	}
	if prev.DeliveryStatus == DeliveryDelivered && next.DeliveryStatus != DeliveryDelivered {
		return fmt.Errorf("holding %s: delivery status reverted", prev.ID)
	}
	if prev.ConsignmentStatus == ConsignmentSold && next.ConsignmentStatus != ConsignmentSold {
		return fmt.Errorf("holding %s: left terminal sold state", prev.ID)
	}
	if prev.HasConsignmentHistory() && next.ConsignmentStatus == ConsignmentNone {
		return fmt.Errorf("holding %s: consignment history cleared", prev.ID)
	}
	return nil
}

// HoldingsPage is one page from the upstream holdings source. The ticket
// count rides along with every page and is the refresh target for the
// ledger cache.
type HoldingsPage struct {
	Holdings    []Holding `json:"holdings"`
	TicketCount int       `json:"consignment_ticket_count"`
	Page        int       `json:"page"`
	TotalPages  int       `json:"total_pages"`
}
