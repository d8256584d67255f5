package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a redis pub/sub implementation of Bus, for fan-out across
// processes. Payloads travel as JSON.
type RedisBus struct {
	client redis.UniversalClient
	log    *slog.Logger
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithLogger sets the bus logger.
func WithLogger(log *slog.Logger) RedisBusOption {
	return func(b *RedisBus) {
		b.log = log
	}
}

// NewRedisBus creates a bus over a redis client.
func NewRedisBus(client redis.UniversalClient, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		client: client,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends a payload to every subscriber of topic
func (b *RedisBus) Publish(ctx context.Context, topic string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for topic %q: %w", topic, err)
	}
	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish to topic %q: %w", topic, err)
	}
	return nil
}

// Subscribe delivers topic messages to h until ctx is canceled
func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	pubsub := b.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	b.log.Info("subscribed to topic", "topic", topic)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("unsubscribed from topic", "topic", topic)
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				b.log.Error("dropping malformed event", "topic", topic, "error", err)
				continue
			}
			h(ctx, payload)
		}
	}
}
