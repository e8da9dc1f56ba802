package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSinkConfig tunes the producer.
type KafkaSinkConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
}

// DefaultKafkaSinkConfig favors low latency over batching; match events
// are rare relative to queue traffic.
func DefaultKafkaSinkConfig() KafkaSinkConfig {
	return KafkaSinkConfig{
		BatchSize:    16,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		RequiredAcks: 1,
	}
}

// KafkaSink publishes match events as JSON messages keyed by pair id.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink creates a producer-only sink.
func NewKafkaSink(brokers []string, topic string, cfg KafkaSinkConfig, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}
	return &KafkaSink{writer: writer, logger: logger}
}

func (s *KafkaSink) Notify(ctx context.Context, ev MatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Pair.ID.String()),
		Value: payload,
		Time:  ev.OccurredAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("kafka notify failed", zap.String("pair_id", ev.Pair.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
