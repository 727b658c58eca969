package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"redemption-system/internal/status"
	"redemption-system/models"
	"redemption-system/services"
)

type Config struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	PartnerID string `json:"partnerId" mapstructure:"partner_id"`
	ClientID  string `json:"clientId" mapstructure:"client_id"`
	ClientKey string `json:"clientKey" mapstructure:"client_key"`
	HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`

	// WebhookSecretHash is the bcrypt hash of the shared secret the
	// marketplace presents on resolution webhooks.
	WebhookSecretHash string `json:"webhookSecretHash" mapstructure:"webhook_secret_hash"`

	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
}

// Marketplace is the HTTP client for the external redemption backend: the
// delivery API, the consignment submission API, and the holdings source.
type Marketplace struct {
	cfg *Config

	client *client

	sub *subscribe
}

var (
	_ services.DeliveryAPI    = (*Marketplace)(nil)
	_ services.ConsignmentAPI = (*Marketplace)(nil)
	_ services.HoldingsSource = (*Marketplace)(nil)
)

// New connects to the market backend and starts the partner token
// refresher and, when configured, the resolution subscription.
func New(ctx context.Context, cfg *Config) (*Marketplace, error) {
	cl := newClient(ctx, &ClientConfig{
		BaseURL:   cfg.BaseURL,
		PartnerID: cfg.PartnerID,
		ClientID:  cfg.ClientID,
		ClientKey: cfg.ClientKey,
		HMACKey:   cfg.HMACKey,
	})

	token, err := cl.connect(ctx)
	if err != nil {
		return nil, err
	}
	cl.setAccessToken(token)

	go cl.notifyAccessTokenExpired(ctx)

	m := &Marketplace{
		cfg:    cfg,
		client: cl,
	}

	if cfg.PNSubKey != "" {
		sub, err := m.newSubscription(ctx)
		if err != nil {
			return nil, fmt.Errorf("market: resolution subscription: %w", err)
		}
		m.sub = sub
	}

	return m, nil
}

// replyEnvelope is the market backend's uniform response shape.
type replyEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SubmitDelivery asks the backend to ship the holding to its owner.
func (m *Marketplace) SubmitDelivery(ctx context.Context, sub services.DeliverySubmission) (string, error) {
	requestID, err := randomRequestID()
	if err != nil {
		return "", fmt.Errorf("submitDelivery: randomRequestID: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"holdingId":%q,"addressId":%q,"referenceId":%q}`,
		requestID, sub.HoldingID, sub.AddressID, sub.ReferenceID)

	reply, err := m.call(ctx, "/api/partner/redemption/deliver", body, sub.AuthToken)
	if err != nil {
		return "", err
	}

	return reply.Message, nil
}

// SubmitConsignment lists the holding for resale at the given price.
func (m *Marketplace) SubmitConsignment(ctx context.Context, sub services.ConsignmentSubmission) (string, error) {
	requestID, err := randomRequestID()
	if err != nil {
		return "", fmt.Errorf("submitConsignment: randomRequestID: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"holdingId":%q,"price":%s,"referenceId":%q}`,
		requestID, sub.HoldingID, sub.Price.String(), sub.ReferenceID)

	reply, err := m.call(ctx, "/api/partner/redemption/consign", body, sub.AuthToken)
	if err != nil {
		return "", err
	}

	return reply.Message, nil
}

// holdingPayload is the wire shape of one holding. Acquisition time is
// epoch seconds.
type holdingPayload struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	AcquiredAt        int64           `json:"acquiredAt"`
	DeliveryStatus    string          `json:"deliveryStatus"`
	ConsignmentStatus string          `json:"consignmentStatus"`
}

func (p holdingPayload) toDomain() models.Holding {
	return models.Holding{
		ID:                p.ID,
		UserID:            p.UserID,
		Name:              p.Name,
		Price:             p.Price,
		AcquiredAt:        time.Unix(p.AcquiredAt, 0).UTC(),
		DeliveryStatus:    models.DeliveryStatus(p.DeliveryStatus),
		ConsignmentStatus: models.ConsignmentStatus(p.ConsignmentStatus),
	}
}

// FetchHoldings retrieves one page of the user's holdings together with
// the consignment ticket balance.
func (m *Marketplace) FetchHoldings(ctx context.Context, token string, page int) (*models.HoldingsPage, error) {
	requestID, err := randomRequestID()
	if err != nil {
		return nil, fmt.Errorf("fetchHoldings: randomRequestID: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"page":%d}`, requestID, page)

	reply, err := m.call(ctx, "/api/partner/holdings/list", body, token)
	if err != nil {
		return nil, err
	}

	var data struct {
		Holdings    []holdingPayload `json:"holdings"`
		TicketCount int              `json:"consignmentTicketCount"`
		Page        int              `json:"page"`
		TotalPages  int              `json:"totalPages"`
	}
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("fetchHoldings: json.Unmarshal: %w", err)
	}

	result := &models.HoldingsPage{
		TicketCount: data.TicketCount,
		Page:        data.Page,
		TotalPages:  data.TotalPages,
	}
	for _, p := range data.Holdings {
		result.Holdings = append(result.Holdings, p.toDomain())
	}

	return result, nil
}

const maxHoldingPages = 50

// FindHolding walks the user's holdings pages for one id, returning the
// holding plus the ticket balance snapshot that came with it.
func (m *Marketplace) FindHolding(ctx context.Context, token, holdingID string) (*models.Holding, int, error) {
	for page := 1; page <= maxHoldingPages; page++ {
		result, err := m.FetchHoldings(ctx, token, page)
		if err != nil {
			return nil, 0, err
		}

		for _, h := range result.Holdings {
			if h.ID == holdingID {
				return &h, result.TicketCount, nil
			}
		}

		if page >= result.TotalPages {
			break
		}
	}

	return nil, 0, status.ErrHoldingNotFound
}

// call posts a signed request and maps a non-OK reply to a remote
// rejection carrying the backend's message verbatim.
func (m *Marketplace) call(ctx context.Context, path, body, userToken string) (*replyEnvelope, error) {
	resp, err := m.client.post(ctx, path, body, userToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, status.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w: unauthorized", path, status.ErrUpstream)
	}

	var reply replyEnvelope
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("%s: json.Decode: %w", path, err)
	}
	if reply.Status != "OK" {
		return nil, models.NewRemoteRejection(reply.Message)
	}

	return &reply, nil
}
