// Package store provides the event outbox persistence implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"khural/internal/events"
)

// Memory is the in-memory outbox for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	entries []events.Event
}

// NewMemory builds an empty in-memory outbox.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Append(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, event)
	return nil
}

func (s *Memory) Pending(ctx context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Memory) MarkPublished(ctx context.Context, eventIDs []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[uuid.UUID]struct{}, len(eventIDs))
	for _, eventID := range eventIDs {
		ids[eventID] = struct{}{}
	}
	for i := range s.entries {
		if _, ok := ids[s.entries[i].ID]; ok && s.entries[i].PublishedAt == nil {
			publishedAt := at
			s.entries[i].PublishedAt = &publishedAt
		}
	}
	return nil
}

// All returns every appended event, for test assertions.
func (s *Memory) All() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event(nil), s.entries...)
}
