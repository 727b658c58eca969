package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"redemption-system/internal/clients/market"
	"redemption-system/models"
	"redemption-system/services"
)

// WebhookHandler receives marketplace resolution callbacks (a listing
// entering review, selling, failing, or being withdrawn). The callback is
// only a signal: holding state is never written locally, clients are told
// to refetch.
type WebhookHandler struct {
	app              *pocketbase.PocketBase
	notifier         *services.Notifier
	ledger           *services.TicketLedger
	hmacKey          string
	webhookSecretSum string
}

func NewWebhookHandler(app *pocketbase.PocketBase, notifier *services.Notifier, ledger *services.TicketLedger, hmacKey, webhookSecretHash string) *WebhookHandler {
	return &WebhookHandler{
		app:              app,
		notifier:         notifier,
		ledger:           ledger,
		hmacKey:          hmacKey,
		webhookSecretSum: webhookSecretHash,
	}
}

// MarketResolution - authenticated marketplace callback
func (h *WebhookHandler) MarketResolution(e *core.RequestEvent) error {
	secret := e.Request.Header.Get("X-Webhook-Secret")
	if h.webhookSecretSum == "" || !market.VerifyWebhookSecret(h.webhookSecretSum, secret) {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	body, err := io.ReadAll(io.LimitReader(e.Request.Body, 1<<20))
	if err != nil {
		return apis.NewBadRequestError("Invalid body", err)
	}
	if !market.VerifyWebhookSignature(body, h.hmacKey, e.Request.Header.Get("SignedHash")) {
		return apis.NewUnauthorizedError("Bad signature", nil)
	}

	var payload struct {
		HoldingID string `json:"holdingId"`
		UserID    string `json:"userId"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}
	if payload.HoldingID == "" || payload.UserID == "" {
		return apis.NewBadRequestError("Missing holding or user", nil)
	}

	ctx := e.Request.Context()

	// A resolution can change the ticket balance (e.g. a refunded
	// ticket); drop the cache instead of guessing.
	if err := h.ledger.Invalidate(ctx, payload.UserID); err != nil {
		e.App.Logger().Warn("ledger invalidate on resolution failed", "user", payload.UserID, "error", err)
	}

	h.notifier.PublishRefresh(payload.UserID, payload.HoldingID, models.ActionConsign)

	return e.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}
