package audit

import (
	"context"
	"time"

	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

// Store is the audit persistence sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.IdentityID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit records the event, filling timestamp and request-scoped fields from
// the context when the caller left them empty.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID.IsNil() {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}
	return p.store.Append(ctx, event)
}

// List returns the audit trail of one identity.
func (p *Publisher) List(ctx context.Context, subjectID id.IdentityID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}
