package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, e Event) error

// Consumer reads user events from Kafka with a consumer group and hands them to a Handler.
type Consumer struct {
	reader messageReader
	log    *zap.Logger
}

// NewConsumer returns a consumer of topic in group groupID. Returns nil when brokers or topic are empty.
func NewConsumer(brokers []string, topic, groupID string, log *zap.Logger) *Consumer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	return newConsumer(reader, log)
}

func newConsumer(r messageReader, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: r, log: log}
}

// Run reads until ctx is done. Malformed messages and handler failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("events: kafka read failed", zap.Error(err))
			continue
		}
		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil || e.Type == "" {
			c.log.Warn("events: skipping malformed message",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if err := handle(ctx, e); err != nil {
			c.log.Warn("events: handler failed",
				zap.String("type", string(e.Type)), zap.Int64("user_id", e.UserID), zap.Error(err))
		}
	}
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
