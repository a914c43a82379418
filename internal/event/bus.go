// Package event provides a small synchronous event bus. Domain code raises
// events at the call site and subscribers run in registration order before
// Publish returns; there is no background delivery and no implicit global
// wiring.
package event

import (
	"context"
	"sync"
)

// Kind names a class of domain event, e.g. "user.created".
type Kind string

// Event is a fired domain event. Source optionally identifies the emitter so
// subscribers can filter (the analog of a sender filter); Payload carries
// event data by well-known keys.
type Event struct {
	Kind    Kind
	Source  string
	Payload map[string]interface{}
}

// Handler receives a published event. An error aborts delivery to the
// remaining subscribers and is returned to the publisher.
type Handler func(ctx context.Context, evt Event) error

type subscription struct {
	source  string
	handler Handler
}

type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers handler for events of the given kind. A non-empty
// source restricts delivery to events published with that exact source.
func (b *Bus) Subscribe(kind Kind, source string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], subscription{source: source, handler: handler})
}

// Publish delivers evt synchronously, in subscription order. The first
// handler error stops delivery and is returned.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	subs := b.subs[evt.Kind]
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.source != "" && sub.source != evt.Source {
			continue
		}
		if err := sub.handler(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}
