package market

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
)

// ResolutionEvent is the marketplace telling us one listing resolved:
// pending review became active, or an active listing sold, failed, or was
// withdrawn. The service only forwards it as a refresh signal; holding
// state is re-read from the holdings source.
type ResolutionEvent struct {
	HoldingID  string    `json:"holding_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type resolutionPayload struct {
	HoldingID  string `json:"holdingId"`
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	OccurredAt string `json:"occurredAt"`
}

func (p *resolutionPayload) toDomain() (*ResolutionEvent, error) {
	ts, err := time.Parse(time.RFC3339, p.OccurredAt)
	if err != nil {
		return nil, err
	}

	return &ResolutionEvent{
		HoldingID:  p.HoldingID,
		UserID:     p.UserID,
		Status:     p.Status,
		Message:    p.Message,
		OccurredAt: ts,
	}, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *ResolutionEvent
}

// SetResolutionChannel directs resolution events to ch. Events arriving
// before a channel is set are dropped.
func (m *Marketplace) SetResolutionChannel(ch chan *ResolutionEvent) {
	if m.sub != nil {
		m.sub.ch = ch
	}
}

func (m *Marketplace) newSubscription(ctx context.Context) (*subscribe, error) {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(m.cfg.PNUUID))
	pnCfg.SubscribeKey = m.cfg.PNSubKey
	pnCfg.SecretKey = m.cfg.PNSubSecret

	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}

	sub.pn.AddListener(sub.lis)
	sub.pn.Subscribe().Channels([]string{m.cfg.PNChannel}).Execute()

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) {
	for {
		select {
		case st := <-s.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("market: connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("market: reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("market: disconnected from pubnub")

			default:
				log.Printf("market: pubnub status category %v", st.Category)
			}

		case message := <-s.lis.Message:
			raw, ok := message.Message.(string)
			if !ok {
				continue
			}

			var p resolutionPayload
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&p); err != nil {
				log.Printf("market: bad resolution payload: %v", err)
				continue
			}

			event, err := p.toDomain()
			if err != nil {
				log.Printf("market: bad resolution timestamp: %v", err)
				continue
			}

			if s.ch != nil {
				s.ch <- event
			}

		case <-ctx.Done():
			s.pn.UnsubscribeAll()
			log.Println("market: close resolution subscription")
			return
		}
	}
}
