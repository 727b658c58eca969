package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"redemption-system/services"
)

type HoldingsHandler struct {
	app      *pocketbase.PocketBase
	holdings services.HoldingsSource
	ledger   *services.TicketLedger
	cache    *services.HoldingsCache
}

func NewHoldingsHandler(app *pocketbase.PocketBase, holdings services.HoldingsSource, ledger *services.TicketLedger, cache *services.HoldingsCache) *HoldingsHandler {
	return &HoldingsHandler{
		app:      app,
		holdings: holdings,
		ledger:   ledger,
		cache:    cache,
	}
}

// ListHoldings - proxied holdings page; every fetch is also the refresh
// target for the ticket ledger cache
func (h *HoldingsHandler) ListHoldings(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	page := 1
	if raw := e.Request.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apis.NewBadRequestError("Invalid page", err)
		}
		page = parsed
	}

	ctx := e.Request.Context()

	result, err := h.holdings.FetchHoldings(ctx, authToken(e), page)
	if err != nil {
		return writeRejection(e, err)
	}

	stale := false
	for _, holding := range result.Holdings {
		if err := h.cache.CheckAndRecord(ctx, holding); err != nil {
			stale = true
		}
	}

	if err := h.ledger.Refresh(ctx, e.Auth.Id, result.TicketCount); err != nil {
		e.App.Logger().Warn("ledger refresh on list failed", "user", e.Auth.Id, "error", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"holdings":                 result.Holdings,
		"consignment_ticket_count": result.TicketCount,
		"page":                     result.Page,
		"total_pages":              result.TotalPages,
		"state_anomaly":            stale,
	})
}

// GetTicketBalance - the cached consignment ticket balance
func (h *HoldingsHandler) GetTicketBalance(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()

	count, err := h.ledger.Count(ctx, e.Auth.Id)
	if err != nil {
		// Cache miss: pull the authoritative value through a fetch.
		result, fetchErr := h.holdings.FetchHoldings(ctx, authToken(e), 1)
		if fetchErr != nil {
			return writeRejection(e, fetchErr)
		}
		count = result.TicketCount
		if err := h.ledger.Refresh(ctx, e.Auth.Id, count); err != nil {
			e.App.Logger().Warn("ledger refresh on balance failed", "user", e.Auth.Id, "error", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"consignment_ticket_count": count,
	})
}
