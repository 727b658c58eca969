package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

type ClientConfig struct {
	BaseURL       string `json:"baseUrl" mapstructure:"base_url"`
	PartnerID     string `json:"partnerId" mapstructure:"partner_id"`
	ClientID      string `json:"clientId" mapstructure:"client_id"`
	ClientKey     string `json:"clientKey" mapstructure:"client_key"`
	HMACKey       string `json:"hmacKey" mapstructure:"hmac_key"`
	WebhookSecret string `json:"webhookSecret" mapstructure:"webhook_secret"`
}

// client is the signed HTTP transport shared by the market endpoints.
// Partner authentication uses a refreshable access token; the end user's
// session token is forwarded per request.
type client struct {
	baseURL   string
	partnerID string
	clientID  string
	clientKey string
	hmacKey   string

	// accessToken authenticates this service as a marketplace partner.
	accessToken string

	// mu guards accessToken.
	mu sync.Mutex

	// toggleTokenRefresher wakes the refresher on a 401.
	toggleTokenRefresher chan struct{}

	hc *http.Client
}

func newClient(_ context.Context, c *ClientConfig) *client {
	return &client{
		baseURL:   c.BaseURL,
		partnerID: c.PartnerID,
		clientID:  c.ClientID,
		clientKey: c.ClientKey,
		hmacKey:   c.HMACKey,

		toggleTokenRefresher: make(chan struct{}, 1),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired renews the partner token periodically and on
// demand, with exponential backoff.
func (c *client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (c *client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

func (c *client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect authenticates this service with the market backend.
func (c *client) connect(ctx context.Context) (string, error) {
	requestID, err := randomRequestID()
	if err != nil {
		return "", fmt.Errorf("connectMarket: randomRequestID: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"clientId":%q,"clientSecret":%q}`, requestID, c.partnerID, c.clientID, c.clientKey)

	resp, err := c.post(ctx, "/api/partner/authenticate", body, "")
	if err != nil {
		return "", fmt.Errorf("connectMarket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errors.New("connectMarket: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connectMarket: http.StatusCode: %d", resp.StatusCode)
	}

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectMarket: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("connectMarket: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken), nil
}

// post sends a signed JSON body. userToken, when set, is forwarded so the
// backend can authorize the end user's action.
func (c *client) post(ctx context.Context, path, body, userToken string) (*http.Response, error) {
	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), path), bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	if token := c.getAccessToken(); token != "" {
		req.Header.Set("Authorization", token)
	}
	if userToken != "" {
		req.Header.Set("X-User-Token", userToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w", err)
	}

	// Wake the refresher; the caller still sees the failure.
	if resp.StatusCode == http.StatusUnauthorized {
		select {
		case c.toggleTokenRefresher <- struct{}{}:
		default:
		}
	}

	return resp, nil
}
