package events

import (
	"context"
	"sync"
)

// MemoryBus is a process-local bus for single-process deployments and tests.
// Publish drops messages for slow subscribers rather than blocking the
// publisher.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan map[string]any
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string][]chan map[string]any),
	}
}

// Publish sends a payload to every subscriber of topic
func (b *MemoryBus) Publish(_ context.Context, topic string, payload map[string]any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			// subscriber not keeping up, drop
		}
	}
	return nil
}

// Subscribe delivers topic messages to h until ctx is canceled
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	ch := make(chan map[string]any, 16)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		chans := b.subs[topic]
		for i, c := range chans {
			if c == ch {
				b.subs[topic] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-ch:
			h(ctx, payload)
		}
	}
}
