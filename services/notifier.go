package services

import (
	"fmt"

	pubnub "github.com/pubnub/go"

	"redemption-system/models"
)

// Notifier pushes refresh signals to a user's connected clients on their
// PubNub channel. A nil Notifier is a no-op (tests, pubnub disabled).
type Notifier struct {
	pubnub *pubnub.PubNub
}

func NewNotifier(pn *pubnub.PubNub) *Notifier {
	if pn == nil {
		return nil
	}
	return &Notifier{pubnub: pn}
}

// PublishRefresh tells every client of the user to refetch holdings and
// the ticket balance after an accepted submission.
func (n *Notifier) PublishRefresh(userID, holdingID string, action models.Action) {
	if n == nil {
		return
	}

	channel := fmt.Sprintf("user-%s", userID)
	n.pubnub.Publish().
		Channel(channel).
		Message(map[string]any{
			"type":       "redemption_refresh",
			"holding_id": holdingID,
			"action":     string(action),
		}).
		Execute()
}
