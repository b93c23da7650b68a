// Package store provides the ballot ledger persistence implementations.
// Both enforce (election, voter) uniqueness at the storage layer so a
// losing concurrent cast fails instead of overwriting.
package store

import (
	"context"
	"sync"

	"khural/internal/ballot"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

type ballotKey struct {
	election id.ElectionID
	voter    id.PrincipalID
}

// Memory is the in-memory ballot store.
type Memory struct {
	mu       sync.RWMutex
	byKey    map[ballotKey]*ballot.Ballot
	perElect map[id.ElectionID]int
}

// NewMemory builds an empty in-memory ballot store.
func NewMemory() *Memory {
	return &Memory{
		byKey:    make(map[ballotKey]*ballot.Ballot),
		perElect: make(map[id.ElectionID]int),
	}
}

// Insert appends a ballot. The check-and-insert is atomic under the store
// lock; a duplicate (election, voter) pair returns sentinel.ErrConflict.
func (s *Memory) Insert(ctx context.Context, b *ballot.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ballotKey{election: b.ElectionID, voter: b.VoterID}
	if _, exists := s.byKey[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *b
	s.byKey[key] = &cp
	s.perElect[b.ElectionID]++
	return nil
}

// HasVoted reports whether the voter already holds a ballot in the
// election.
func (s *Memory) HasVoted(ctx context.Context, electionID id.ElectionID, voterID id.PrincipalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[ballotKey{election: electionID, voter: voterID}]
	return ok, nil
}

// CountByElection returns the number of ballots in the election. This is
// the independent count certification cross-checks against the candidacy
// vote counters.
func (s *Memory) CountByElection(ctx context.Context, electionID id.ElectionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perElect[electionID], nil
}
