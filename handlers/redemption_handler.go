package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"redemption-system/internal/clock"
	"redemption-system/internal/status"
	"redemption-system/models"
	"redemption-system/services"
)

type RedemptionHandler struct {
	app        *pocketbase.PocketBase
	controller *services.RedemptionController
	holdings   services.HoldingsSource
	clock      clock.Clock
}

func NewRedemptionHandler(app *pocketbase.PocketBase, controller *services.RedemptionController, holdings services.HoldingsSource, clk clock.Clock) *RedemptionHandler {
	return &RedemptionHandler{
		app:        app,
		controller: controller,
		holdings:   holdings,
		clock:      clk,
	}
}

// RequestDelivery - submit a physical delivery request for a holding
func (h *RedemptionHandler) RequestDelivery(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		HoldingID     string `json:"holding_id"`
		AddressID     string `json:"address_id"`
		ConfirmForced bool   `json:"confirm_forced"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.HoldingID == "" {
		return apis.NewBadRequestError("Missing holding_id", nil)
	}

	holding, tickets, err := h.findOwnHolding(e, req.HoldingID)
	if err != nil {
		return err
	}

	ack, err := h.controller.RequestDelivery(e.Request.Context(), services.DeliveryRequest{
		Holding:       *holding,
		AddressID:     req.AddressID,
		TicketCount:   tickets,
		ConfirmForced: req.ConfirmForced,
		AuthToken:     authToken(e),
	})
	if err != nil {
		return writeRejection(e, err)
	}

	return e.JSON(http.StatusOK, ack)
}

// RequestConsignment - list a holding for resale at its purchase price
func (h *RedemptionHandler) RequestConsignment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		HoldingID string `json:"holding_id"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.HoldingID == "" {
		return apis.NewBadRequestError("Missing holding_id", nil)
	}

	holding, tickets, err := h.findOwnHolding(e, req.HoldingID)
	if err != nil {
		return err
	}

	ack, err := h.controller.RequestConsignment(e.Request.Context(), services.ConsignmentRequest{
		Holding:     *holding,
		TicketCount: tickets,
		AuthToken:   authToken(e),
	})
	if err != nil {
		return writeRejection(e, err)
	}

	return e.JSON(http.StatusOK, ack)
}

// GetEligibility - both action verdicts plus the advisory default tab
func (h *RedemptionHandler) GetEligibility(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	holdingID := e.Request.PathValue("holdingId")
	holding, tickets, err := h.findOwnHolding(e, holdingID)
	if err != nil {
		return err
	}

	result := services.Evaluate(*holding, h.clock.Now(), tickets)

	return e.JSON(http.StatusOK, map[string]any{
		"holding_id":   holding.ID,
		"ticket_count": tickets,
		"eligibility":  result,
	})
}

// GetCountdown - time remaining on the holding's time lock, null once
// elapsed
func (h *RedemptionHandler) GetCountdown(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	holdingID := e.Request.PathValue("holdingId")
	holding, _, err := h.findOwnHolding(e, holdingID)
	if err != nil {
		return err
	}

	remaining := services.ProjectCountdown(holding.AcquiredAt, h.clock.Now())

	return e.JSON(http.StatusOK, map[string]any{
		"holding_id": holding.ID,
		"remaining":  remaining,
	})
}

// findOwnHolding resolves a holding from the authoritative source and
// checks ownership. Ownership failures look like a missing holding.
func (h *RedemptionHandler) findOwnHolding(e *core.RequestEvent, holdingID string) (*models.Holding, int, error) {
	holding, tickets, err := h.holdings.FindHolding(e.Request.Context(), authToken(e), holdingID)
	if err != nil {
		if errors.Is(err, status.ErrHoldingNotFound) {
			return nil, 0, apis.NewNotFoundError("Holding not found", nil)
		}
		return nil, 0, apis.NewBadRequestError("Failed to fetch holding", err)
	}
	if holding.UserID != e.Auth.Id {
		return nil, 0, apis.NewNotFoundError("Holding not found", nil)
	}

	return holding, tickets, nil
}

func authToken(e *core.RequestEvent) string {
	return e.Request.Header.Get("Authorization")
}

// writeRejection maps controller errors onto the HTTP surface keeping
// local and remote rejections visibly distinct.
func writeRejection(e *core.RequestEvent, err error) error {
	var rejection *models.Rejection
	if !errors.As(err, &rejection) {
		return apis.NewBadRequestError("Redemption request failed", err)
	}

	if !rejection.Local {
		return e.JSON(http.StatusBadGateway, rejection)
	}
	if rejection.Reason == models.RejectNotAuthenticated {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	return e.JSON(http.StatusConflict, rejection)
}
