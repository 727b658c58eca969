package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"redemption-system/internal/clock"
	"redemption-system/models"
	"redemption-system/monitoring"
)

// DeliverySubmission is one physical delivery request sent upstream.
type DeliverySubmission struct {
	HoldingID   string
	AddressID   string
	ReferenceID string
	AuthToken   string
}

// ConsignmentSubmission is one resale listing request sent upstream.
type ConsignmentSubmission struct {
	HoldingID   string
	Price       decimal.Decimal
	ReferenceID string
	AuthToken   string
}

// DeliveryAPI submits delivery requests to the external redemption
// backend. A business-level refusal comes back as *models.Rejection.
type DeliveryAPI interface {
	SubmitDelivery(ctx context.Context, sub DeliverySubmission) (string, error)
}

// ConsignmentAPI submits resale listings to the external marketplace.
type ConsignmentAPI interface {
	SubmitConsignment(ctx context.Context, sub ConsignmentSubmission) (string, error)
}

// HoldingsSource is the authoritative upstream list of a user's holdings.
// Every page carries the user's consignment ticket balance.
type HoldingsSource interface {
	FetchHoldings(ctx context.Context, token string, page int) (*models.HoldingsPage, error)
	FindHolding(ctx context.Context, token, holdingID string) (*models.Holding, int, error)
}

// RedemptionController orchestrates user-initiated redemption actions. It
// re-validates eligibility against an injected clock and snapshot (never
// trusting an evaluation done earlier in the UI lifecycle), guards against
// concurrent requests for the same holding, and after an accepted
// submission refreshes the ledger cache and tells the user's clients to
// refetch. It never mutates holding state itself.
type RedemptionController struct {
	guard       *InflightGuard
	ledger      *TicketLedger
	delivery    DeliveryAPI
	consignment ConsignmentAPI
	holdings    HoldingsSource
	notifier    *Notifier
	clock       clock.Clock
	monitor     *monitoring.Monitor
}

func NewRedemptionController(
	guard *InflightGuard,
	ledger *TicketLedger,
	delivery DeliveryAPI,
	consignment ConsignmentAPI,
	holdings HoldingsSource,
	notifier *Notifier,
	clk clock.Clock,
	monitor *monitoring.Monitor,
) *RedemptionController {
	return &RedemptionController{
		guard:       guard,
		ledger:      ledger,
		delivery:    delivery,
		consignment: consignment,
		holdings:    holdings,
		notifier:    notifier,
		clock:       clk,
		monitor:     monitor,
	}
}

// DeliveryRequest carries one delivery attempt. TicketCount is the balance
// snapshot fetched alongside the holding.
type DeliveryRequest struct {
	Holding       models.Holding
	AddressID     string
	TicketCount   int
	ConfirmForced bool
	AuthToken     string
}

// ConsignmentRequest carries one listing attempt. The listing price is
// always the holding's own purchase price; there is no user pricing step.
type ConsignmentRequest struct {
	Holding     models.Holding
	TicketCount int
	AuthToken   string
}

// RequestDelivery validates and submits a physical delivery request.
func (c *RedemptionController) RequestDelivery(ctx context.Context, req DeliveryRequest) (*models.Ack, error) {
	if req.AuthToken == "" {
		return nil, c.reject(models.ActionDeliver, models.NewLocalRejection(models.RejectNotAuthenticated))
	}
	if err := req.Holding.Validate(); err != nil {
		return nil, err
	}

	ok, err := c.guard.Acquire(ctx, req.Holding.ID)
	if err != nil {
		return nil, fmt.Errorf("delivery %s: inflight guard: %w", req.Holding.ID, err)
	}
	if !ok {
		return nil, c.reject(models.ActionDeliver, models.NewLocalRejection(models.RejectAlreadyInProgress))
	}
	// Held through the post-success refresh so a duplicate submit racing
	// the refetch is still rejected.
	defer c.release(ctx, req.Holding.ID)

	eligibility := evaluateDeliver(req.Holding, c.clock.Now())
	if !eligibility.Allowed {
		rejection := models.NewLocalRejection(models.ReasonForBlock(eligibility.Reason))
		rejection.HoursRemaining = eligibility.HoursRemaining
		return nil, c.reject(models.ActionDeliver, rejection)
	}
	if eligibility.Reason == models.BlockRequiresForcedConfirmation && !req.ConfirmForced {
		return nil, c.reject(models.ActionDeliver, models.NewLocalRejection(models.RejectNeedsConfirmation))
	}

	sub := DeliverySubmission{
		HoldingID:   req.Holding.ID,
		AddressID:   req.AddressID,
		ReferenceID: uuid.NewString(),
		AuthToken:   req.AuthToken,
	}

	started := time.Now()
	message, err := c.delivery.SubmitDelivery(ctx, sub)
	c.monitor.ObserveUpstreamCall("delivery", time.Since(started))
	if err != nil {
		return nil, c.submitError(models.ActionDeliver, req.Holding.ID, err)
	}

	c.afterAccepted(ctx, req.AuthToken, req.Holding, models.ActionDeliver)
	c.monitor.TrackRedemption(string(models.ActionDeliver), "accepted")

	return &models.Ack{
		HoldingID:       req.Holding.ID,
		Action:          models.ActionDeliver,
		ReferenceID:     sub.ReferenceID,
		Message:         message,
		RefreshRequired: true,
	}, nil
}

// RequestConsignment validates and submits a resale listing.
func (c *RedemptionController) RequestConsignment(ctx context.Context, req ConsignmentRequest) (*models.Ack, error) {
	if req.AuthToken == "" {
		return nil, c.reject(models.ActionConsign, models.NewLocalRejection(models.RejectNotAuthenticated))
	}
	if err := req.Holding.Validate(); err != nil {
		return nil, err
	}

	ok, err := c.guard.Acquire(ctx, req.Holding.ID)
	if err != nil {
		return nil, fmt.Errorf("consignment %s: inflight guard: %w", req.Holding.ID, err)
	}
	if !ok {
		return nil, c.reject(models.ActionConsign, models.NewLocalRejection(models.RejectAlreadyInProgress))
	}
	defer c.release(ctx, req.Holding.ID)

	eligibility := evaluateConsign(req.Holding, c.clock.Now(), req.TicketCount)
	if !eligibility.Allowed {
		rejection := models.NewLocalRejection(models.ReasonForBlock(eligibility.Reason))
		rejection.HoursRemaining = eligibility.HoursRemaining
		return nil, c.reject(models.ActionConsign, rejection)
	}

	// The listing price is the holding's purchase price. A non-positive
	// price means a corrupt record, not a free listing.
	price := req.Holding.Price
	if !price.IsPositive() {
		return nil, c.reject(models.ActionConsign, models.NewLocalRejection(models.RejectInvalidPrice))
	}

	sub := ConsignmentSubmission{
		HoldingID:   req.Holding.ID,
		Price:       price,
		ReferenceID: uuid.NewString(),
		AuthToken:   req.AuthToken,
	}

	started := time.Now()
	message, err := c.consignment.SubmitConsignment(ctx, sub)
	c.monitor.ObserveUpstreamCall("consignment", time.Since(started))
	if err != nil {
		return nil, c.submitError(models.ActionConsign, req.Holding.ID, err)
	}

	c.afterAccepted(ctx, req.AuthToken, req.Holding, models.ActionConsign)
	c.monitor.TrackRedemption(string(models.ActionConsign), "accepted")

	return &models.Ack{
		HoldingID:       req.Holding.ID,
		Action:          models.ActionConsign,
		ReferenceID:     sub.ReferenceID,
		Message:         message,
		RefreshRequired: true,
	}, nil
}

func (c *RedemptionController) reject(action models.Action, rejection *models.Rejection) error {
	c.monitor.TrackRedemption(string(action), "rejected_local")
	c.monitor.TrackLocalRejection(string(rejection.Reason))
	return rejection
}

func (c *RedemptionController) submitError(action models.Action, holdingID string, err error) error {
	// Never guess the outcome: holding state stays untouched either way
	// and is resolved only by the next holdings fetch.
	if rejection, ok := err.(*models.Rejection); ok {
		c.monitor.TrackRedemption(string(action), "rejected_remote")
		return rejection
	}
	c.monitor.TrackRedemption(string(action), "error")
	return fmt.Errorf("%s %s: %w", action, holdingID, err)
}

// afterAccepted refreshes the ledger cache from the authoritative source
// and pushes a refresh signal to the user's clients. Refresh failures are
// logged, not fatal: the next holdings fetch heals the cache.
func (c *RedemptionController) afterAccepted(ctx context.Context, token string, h models.Holding, action models.Action) {
	page, err := c.holdings.FetchHoldings(ctx, token, 1)
	if err != nil {
		slog.Warn("post-redemption holdings refresh failed", "holding", h.ID, "error", err)
		if err := c.ledger.Invalidate(ctx, h.UserID); err != nil {
			slog.Warn("ledger invalidate failed", "user", h.UserID, "error", err)
		}
	} else if err := c.ledger.Refresh(ctx, h.UserID, page.TicketCount); err != nil {
		slog.Warn("ledger refresh failed", "user", h.UserID, "error", err)
	}

	c.notifier.PublishRefresh(h.UserID, h.ID, action)
}

func (c *RedemptionController) release(ctx context.Context, holdingID string) {
	if err := c.guard.Release(ctx, holdingID); err != nil {
		slog.Warn("inflight guard release failed", "holding", holdingID, "error", err)
	}
}
