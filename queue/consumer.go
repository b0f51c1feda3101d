// Package queue is the broker boundary: a consumer group that feeds
// purchase commands into the coordinator and a producer that carries
// results back out.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"fiat-checkout/models"
)

// PurchaseHandler runs the pipeline for one decoded command.
type PurchaseHandler interface {
	Handle(ctx context.Context, req *models.PurchaseRequest) error
}

type Consumer struct {
	group  sarama.ConsumerGroup
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID string, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer group required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_7_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &Consumer{
		group:  group,
		logger: logger,
	}, nil
}

// Consume runs the consumer loop on topics until ctx ends. Each topic's
// messages are dispatched to its registered handler.
func (c *Consumer) Consume(ctx context.Context, handlers map[string]PurchaseHandler) error {
	if len(handlers) == 0 {
		return fmt.Errorf("at least one topic handler required")
	}

	topics := make([]string, 0, len(handlers))
	for topic := range handlers {
		topics = append(topics, topic)
	}

	cgHandler := &purchaseGroupHandler{
		handlers: handlers,
		logger:   c.logger,
	}

	for {
		if err := c.group.Consume(ctx, topics, cgHandler); err != nil {
			c.logger.Error("kafka consume error", "error", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(2 * time.Second)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

type purchaseGroupHandler struct {
	handlers map[string]PurchaseHandler
	logger   *slog.Logger
}

func (h *purchaseGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *purchaseGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *purchaseGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handleMessage(session.Context(), msg); err != nil {
			// Left unmarked: the broker redelivers transient failures.
			h.logger.Error("purchase command failed",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (h *purchaseGroupHandler) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	handler, ok := h.handlers[msg.Topic]
	if !ok {
		return fmt.Errorf("no handler for topic %s", msg.Topic)
	}

	var req models.PurchaseRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		// Poison message: redelivery cannot fix a payload that does not
		// decode, so log loudly and ack.
		h.logger.Error("dropping undecodable purchase command",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if err := req.Validate(); err != nil {
		h.logger.Error("dropping invalid purchase command",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}

	h.logger.Info("handling purchase command",
		"topic", msg.Topic, "kind", req.Kind, "session", req.SessionID,
		"buyer", req.BuyerID, "event", req.EventID)

	return handler.Handle(ctx, &req)
}
