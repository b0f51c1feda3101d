package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"fiat-checkout/models"
	"fiat-checkout/monitoring"
)

// ResultProducer publishes purchase results to the result topic, keyed by
// session id so one session's results stay ordered on a single partition.
type ResultProducer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewResultProducer(brokers []string, topic string, logger *slog.Logger) (*ResultProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if topic == "" {
		return nil, fmt.Errorf("result topic required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_7_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &ResultProducer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}, nil
}

func (p *ResultProducer) Publish(ctx context.Context, result models.PurchaseResult) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal purchase result: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(result.SessionID),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		monitoring.TrackResultPublished("kafka", "error")
		p.logger.Error("result publish failed", "topic", p.topic, "session", result.SessionID, "error", err)
		return fmt.Errorf("publish purchase result: %w", err)
	}

	monitoring.TrackResultPublished("kafka", result.Status)
	return nil
}

func (p *ResultProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
