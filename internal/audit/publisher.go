package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit events. The store write is
// synchronous and is the source of truth; the event is additionally queued
// for the Kafka worker when one is running.
type Publisher struct {
	store Store
	inbox chan Event
}

// NewPublisher builds a Publisher. The buffer bounds how many events can be
// pending for the Kafka worker before new ones are dropped from the stream
// (the store copy is never dropped).
func NewPublisher(store Store, buffer int) *Publisher {
	return &Publisher{
		store: store,
		inbox: make(chan Event, buffer),
	}
}

// Emit persists an event, filling in ID and timestamp defaults.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	// The stream is best-effort; a stalled broker must not block requests.
	select {
	case p.inbox <- event:
	default:
	}
	return nil
}

// Events exposes the stream consumed by the Kafka worker.
func (p *Publisher) Events() <-chan Event {
	return p.inbox
}

// List returns all events recorded for a session.
func (p *Publisher) List(ctx context.Context, sessionID uuid.UUID) ([]Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}
