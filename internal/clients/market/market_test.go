package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-system/internal/status"
	"redemption-system/models"
	"redemption-system/services"
)

const testHMACKey = "test-hmac-key"

// newTestBackend fakes the market API: it answers authenticate, verifies
// the body signature on every call, and dispatches the rest to handle.
func newTestBackend(t *testing.T, handle func(path string, body []byte, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.True(t, VerifyWebhookSignature(body, testHMACKey, r.Header.Get("SignedHash")), "unsigned request to %s", r.URL.Path)

		if r.URL.Path == "/api/partner/authenticate" {
			fmt.Fprint(w, `{"status":"OK","message":"authenticated","data":{"accessToken":"abc123","tokenType":"Bearer"}}`)
			return
		}

		require.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		handle(r.URL.Path, body, w, r)
	}))
}

func newTestMarketplace(t *testing.T, srv *httptest.Server) *Marketplace {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m, err := New(ctx, &Config{
		BaseURL:   srv.URL,
		PartnerID: "partner-1",
		ClientID:  "client-1",
		ClientKey: "client-key",
		HMACKey:   testHMACKey,
	})
	require.NoError(t, err)
	return m
}

func TestMarketplace_SubmitDelivery(t *testing.T) {
	srv := newTestBackend(t, func(path string, body []byte, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/partner/redemption/deliver", path)
		assert.Equal(t, "user-token", r.Header.Get("X-User-Token"))

		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "holding-1", req["holdingId"])
		assert.Equal(t, "addr-1", req["addressId"])
		assert.NotEmpty(t, req["requestId"])

		fmt.Fprint(w, `{"status":"OK","message":"delivery scheduled","data":null}`)
	})
	defer srv.Close()

	m := newTestMarketplace(t, srv)

	msg, err := m.SubmitDelivery(context.Background(), services.DeliverySubmission{
		HoldingID:   "holding-1",
		AddressID:   "addr-1",
		ReferenceID: "ref-1",
		AuthToken:   "user-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "delivery scheduled", msg)
}

func TestMarketplace_SubmitConsignment_RemoteRejection(t *testing.T) {
	srv := newTestBackend(t, func(path string, body []byte, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"REJECTED","message":"listing window closed","data":null}`)
	})
	defer srv.Close()

	m := newTestMarketplace(t, srv)

	_, err := m.SubmitConsignment(context.Background(), services.ConsignmentSubmission{
		HoldingID:   "holding-1",
		Price:       decimal.NewFromInt(120),
		ReferenceID: "ref-1",
		AuthToken:   "user-token",
	})

	var rejection *models.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.False(t, rejection.Local)
	assert.Equal(t, "listing window closed", rejection.Message)
}

func TestMarketplace_FetchHoldings(t *testing.T) {
	acquired := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := newTestBackend(t, func(path string, body []byte, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/partner/holdings/list", path)
		fmt.Fprintf(w, `{"status":"OK","message":"","data":{
			"holdings":[{"id":"holding-1","userId":"user-1","name":"Graded Card #7","price":120,"acquiredAt":%d,"deliveryStatus":"not_delivered","consignmentStatus":"none"}],
			"consignmentTicketCount":2,"page":1,"totalPages":1}}`, acquired.Unix())
	})
	defer srv.Close()

	m := newTestMarketplace(t, srv)

	page, err := m.FetchHoldings(context.Background(), "user-token", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, page.TicketCount)
	require.Len(t, page.Holdings, 1)
	h := page.Holdings[0]
	assert.Equal(t, "holding-1", h.ID)
	assert.Equal(t, acquired, h.AcquiredAt)
	assert.Equal(t, models.DeliveryNotDelivered, h.DeliveryStatus)
	assert.True(t, h.Price.Equal(decimal.NewFromInt(120)))
}

func TestMarketplace_FindHolding(t *testing.T) {
	srv := newTestBackend(t, func(path string, body []byte, w http.ResponseWriter, r *http.Request) {
		var req struct {
			Page int `json:"page"`
		}
		require.NoError(t, json.Unmarshal(body, &req))

		// holding-2 lives on the second of two pages.
		id := "holding-1"
		if req.Page == 2 {
			id = "holding-2"
		}
		fmt.Fprintf(w, `{"status":"OK","message":"","data":{
			"holdings":[{"id":%q,"userId":"user-1","price":50,"acquiredAt":1748779200,"deliveryStatus":"not_delivered","consignmentStatus":"none"}],
			"consignmentTicketCount":1,"page":%d,"totalPages":2}}`, id, req.Page)
	})
	defer srv.Close()

	m := newTestMarketplace(t, srv)

	h, tickets, err := m.FindHolding(context.Background(), "user-token", "holding-2")
	require.NoError(t, err)
	assert.Equal(t, "holding-2", h.ID)
	assert.Equal(t, 1, tickets)

	_, _, err = m.FindHolding(context.Background(), "user-token", "missing")
	assert.ErrorIs(t, err, status.ErrHoldingNotFound)
}
