package events

import (
	"context"

	"github.com/distkit/conveyor/pkg/capability"
	"github.com/distkit/conveyor/pkg/registry"
	"github.com/distkit/conveyor/pkg/task"
)

// PublishStage is an Execute plugin that publishes the context's portable
// form after the downstream chain succeeds. Configuration: "topic" (required).
type PublishStage struct {
	bus   Bus
	topic string
}

// NewPublishStage creates a publish stage for a fixed topic.
func NewPublishStage(bus Bus, topic string) *PublishStage {
	return &PublishStage{bus: bus, topic: topic}
}

// Invoke runs the rest of the chain first, then publishes. A downstream error
// propagates unmodified and suppresses the event; a publish failure surfaces
// to the caller after the work already happened.
func (s *PublishStage) Invoke(ctx context.Context, next capability.Continuation, tc task.Context, args ...any) (any, error) {
	result, err := next(ctx, tc, args...)
	if err != nil {
		return nil, err
	}

	payload, err := tc.Portable()
	if err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, s.topic, payload); err != nil {
		return nil, err
	}
	return result, nil
}

// RegisterPublish registers the publish plugin under name. The bus is a live
// handle captured at registration; the topic comes from stage configuration.
func RegisterPublish(reg *registry.Registry, name string, bus Bus) error {
	return reg.Register(capability.KindExecute, name, func(cfg registry.Config) (capability.Stage, error) {
		topic, err := cfg.RequireString(name, "topic")
		if err != nil {
			return nil, err
		}
		return NewPublishStage(bus, topic), nil
	})
}
