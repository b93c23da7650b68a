// Package events records election lifecycle events for delivery to the
// notification fan-out. Events are appended to a transactional outbox in
// the same transaction as the domain write and published to Kafka by a
// background worker; consumption is the fan-out service's concern.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "khural/pkg/domain"
)

// Type names one lifecycle event.
type Type string

const (
	TypeElectionCreated   Type = "election_created"
	TypeElectionCertified Type = "election_certified"
)

// Event is one outbox entry. Payload is the JSON record published to the
// broker as-is.
type Event struct {
	ID          uuid.UUID
	Type        Type
	ElectionID  id.ElectionID
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Store is the outbox persistence contract.
type Store interface {
	// Append adds an event. Runs in the caller's transaction when one is
	// present in the context.
	Append(ctx context.Context, event Event) error

	// Pending returns up to limit unpublished events, oldest first.
	Pending(ctx context.Context, limit int) ([]Event, error)

	// MarkPublished records that the events were handed to the broker.
	MarkPublished(ctx context.Context, eventIDs []uuid.UUID, at time.Time) error
}
