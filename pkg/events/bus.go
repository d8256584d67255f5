// Package events provides the pub/sub collaborator pipelines publish
// lifecycle notifications through.
package events

import (
	"context"
)

// Handler receives one published message.
type Handler func(ctx context.Context, payload map[string]any)

// Bus is a topic-based publish/subscribe abstraction. Subscribe blocks,
// delivering messages to the handler until the context is canceled;
// unsubscribing is canceling that context.
type Bus interface {
	// Publish sends a payload to every subscriber of topic
	Publish(ctx context.Context, topic string, payload map[string]any) error

	// Subscribe delivers topic messages to h until ctx is canceled
	Subscribe(ctx context.Context, topic string, h Handler) error
}
