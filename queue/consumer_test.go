package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiat-checkout/models"
)

type recordingHandler struct {
	requests []*models.PurchaseRequest
	err      error
}

func (h *recordingHandler) Handle(ctx context.Context, req *models.PurchaseRequest) error {
	h.requests = append(h.requests, req)
	return h.err
}

func testMessage(t *testing.T, topic string, req models.PurchaseRequest) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(req)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: topic, Value: value}
}

func validRequest() models.PurchaseRequest {
	return models.PurchaseRequest{
		Kind:             models.KindSecondary,
		SessionID:        "session-1",
		BuyerID:          "buyer-1",
		EventID:          "event-1",
		ResourceRef:      "listing-1",
		TicketToken:      "token-1",
		RecipientAddress: "recipient-1",
	}
}

func TestHandleMessage_DispatchesToTopicHandler(t *testing.T) {
	handler := &recordingHandler{}
	gh := &purchaseGroupHandler{
		handlers: map[string]PurchaseHandler{"purchase.payment": handler},
		logger:   slog.Default(),
	}

	err := gh.handleMessage(context.Background(), testMessage(t, "purchase.payment", validRequest()))
	require.NoError(t, err)

	require.Len(t, handler.requests, 1)
	assert.Equal(t, "session-1", handler.requests[0].SessionID)
	assert.Equal(t, models.KindSecondary, handler.requests[0].Kind)
}

func TestHandleMessage_UnknownTopicIsAnError(t *testing.T) {
	gh := &purchaseGroupHandler{
		handlers: map[string]PurchaseHandler{"purchase.payment": &recordingHandler{}},
		logger:   slog.Default(),
	}

	err := gh.handleMessage(context.Background(), testMessage(t, "purchase.refund", validRequest()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler for topic")
}

func TestHandleMessage_PoisonPayloadIsAcked(t *testing.T) {
	handler := &recordingHandler{}
	gh := &purchaseGroupHandler{
		handlers: map[string]PurchaseHandler{"purchase.payment": handler},
		logger:   slog.Default(),
	}

	msg := &sarama.ConsumerMessage{Topic: "purchase.payment", Value: []byte("{not json")}
	err := gh.handleMessage(context.Background(), msg)

	// nil means the message is marked and never redelivered.
	assert.NoError(t, err)
	assert.Empty(t, handler.requests)
}

func TestHandleMessage_InvalidRequestIsAcked(t *testing.T) {
	handler := &recordingHandler{}
	gh := &purchaseGroupHandler{
		handlers: map[string]PurchaseHandler{"purchase.payment": handler},
		logger:   slog.Default(),
	}

	req := validRequest()
	req.SessionID = ""
	err := gh.handleMessage(context.Background(), testMessage(t, "purchase.payment", req))

	assert.NoError(t, err)
	assert.Empty(t, handler.requests)
}

func TestHandleMessage_HandlerErrorPropagates(t *testing.T) {
	handler := &recordingHandler{err: errors.New("pipeline failed")}
	gh := &purchaseGroupHandler{
		handlers: map[string]PurchaseHandler{"purchase.payment": handler},
		logger:   slog.Default(),
	}

	err := gh.handleMessage(context.Background(), testMessage(t, "purchase.payment", validRequest()))
	assert.ErrorContains(t, err, "pipeline failed")
}

func TestNewConsumer_RejectsEmptyConfig(t *testing.T) {
	_, err := NewConsumer(nil, "fiat-checkout", slog.Default())
	assert.ErrorContains(t, err, "brokers required")

	_, err = NewConsumer([]string{"localhost:9092"}, "", slog.Default())
	assert.ErrorContains(t, err, "consumer group required")
}
