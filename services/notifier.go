package services

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"

	"fiat-checkout/models"
	"fiat-checkout/monitoring"
)

// ResultPublisher delivers a purchase result to whoever is waiting for it.
type ResultPublisher interface {
	Publish(ctx context.Context, result models.PurchaseResult) error
}

// SessionNotifier pushes the result straight to the buyer's session channel
// so the websocket client learns the outcome without polling the result
// topic.
type SessionNotifier struct {
	pn *pubnub.PubNub
}

func NewSessionNotifier(pn *pubnub.PubNub) *SessionNotifier {
	return &SessionNotifier{pn: pn}
}

func (n *SessionNotifier) Publish(ctx context.Context, result models.PurchaseResult) error {
	channel := fmt.Sprintf("session-%s", result.SessionID)

	message := map[string]any{
		"type":   "purchase_result",
		"status": result.Status,
	}
	if result.Payload != "" {
		message["payload"] = result.Payload
	}
	if result.Reason != "" {
		message["reason"] = result.Reason
	}

	_, _, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		monitoring.TrackResultPublished("pubnub", "error")
		return fmt.Errorf("notify session %s: %w", result.SessionID, err)
	}

	monitoring.TrackResultPublished("pubnub", result.Status)
	return nil
}

type fanout []ResultPublisher

// Fanout publishes a result to every sink in order, stopping at the first
// failure so the broker redelivers and the remaining sinks get retried.
func Fanout(publishers ...ResultPublisher) ResultPublisher {
	return fanout(publishers)
}

func (f fanout) Publish(ctx context.Context, result models.PurchaseResult) error {
	for _, p := range f {
		if err := p.Publish(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
