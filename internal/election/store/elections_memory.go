// Package store provides election and candidacy persistence. Memory
// implementations back unit tests and local runs; postgres implementations
// are the production backend. The ordering contracts (tally order, listing
// order) are part of the store interface: certification correctness
// depends on them.
package store

import (
	"context"
	"sort"
	"sync"

	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

// MemoryElections is the in-memory election store.
type MemoryElections struct {
	mu        sync.RWMutex
	elections map[id.ElectionID]*election.Election
}

// NewMemoryElections builds an empty in-memory election store.
func NewMemoryElections() *MemoryElections {
	return &MemoryElections{elections: make(map[id.ElectionID]*election.Election)}
}

// Create persists a new election.
func (s *MemoryElections) Create(ctx context.Context, e *election.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.elections[e.ID]; exists {
		return sentinel.ErrConflict
	}
	s.elections[e.ID] = e.Clone()
	return nil
}

// FindByID returns one election or sentinel.ErrNotFound.
func (s *MemoryElections) FindByID(ctx context.Context, electionID id.ElectionID) (*election.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[electionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

// FindByIDForUpdate matches the postgres row-locking read. The memory
// store relies on the transaction runner's lock for exclusivity.
func (s *MemoryElections) FindByIDForUpdate(ctx context.Context, electionID id.ElectionID) (*election.Election, error) {
	return s.FindByID(ctx, electionID)
}

// List returns elections matching the filter, most recent voting start
// first.
func (s *MemoryElections) List(ctx context.Context, filter election.ListFilter) ([]*election.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*election.Election
	for _, e := range s.elections {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Branch != nil && e.Rung.Branch != *filter.Branch {
			continue
		}
		if filter.FromRank != nil && e.Rung.From != *filter.FromRank {
			continue
		}
		if filter.ToRank != nil && e.Rung.To != *filter.ToRank {
			continue
		}
		if filter.ScopeID != nil && e.ScopeID != *filter.ScopeID {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Window.VotingStart.Equal(out[j].Window.VotingStart) {
			return out[i].Window.VotingStart.After(out[j].Window.VotingStart)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Execute atomically validates and mutates one election under the store
// lock.
func (s *MemoryElections) Execute(
	ctx context.Context,
	electionID id.ElectionID,
	validate func(*election.Election) error,
	apply func(*election.Election),
) (*election.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[electionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	apply(e)
	return e.Clone(), nil
}

// Update overwrites a stored election. The terminal certification write
// goes through here after FindByIDForUpdate inside the same transaction.
func (s *MemoryElections) Update(ctx context.Context, e *election.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.elections[e.ID] = e.Clone()
	return nil
}
