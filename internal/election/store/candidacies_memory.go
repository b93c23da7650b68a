package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

// MemoryCandidacies is the in-memory candidacy store.
type MemoryCandidacies struct {
	mu          sync.RWMutex
	candidacies map[id.CandidacyID]*memoryCandidacy
	nextSeq     int
}

// memoryCandidacy tracks insertion order so the first-registered tie-break
// stays deterministic even when creation timestamps collide (tests pin the
// clock).
type memoryCandidacy struct {
	election.Candidacy
	seq int
}

// NewMemoryCandidacies builds an empty in-memory candidacy store.
func NewMemoryCandidacies() *MemoryCandidacies {
	return &MemoryCandidacies{candidacies: make(map[id.CandidacyID]*memoryCandidacy)}
}

// Upsert registers a candidacy, idempotent per (election, candidate). A
// duplicate registration returns the existing record with its platform
// refreshed; the vote count is never touched.
func (s *MemoryCandidacies) Upsert(ctx context.Context, c *election.Candidacy) (*election.Candidacy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.candidacies {
		if existing.ElectionID == c.ElectionID && existing.CandidateID == c.CandidateID {
			if c.Platform != "" {
				existing.Platform = c.Platform
			}
			cp := existing.Candidacy
			return &cp, nil
		}
	}

	stored := &memoryCandidacy{Candidacy: *c, seq: s.nextSeq}
	s.nextSeq++
	s.candidacies[c.ID] = stored
	cp := stored.Candidacy
	return &cp, nil
}

// CreateMissing registers candidacies for any of the given candidates not
// yet present in the election. Used by candidate auto-discovery. Returns
// the number of candidacies created.
func (s *MemoryCandidacies) CreateMissing(ctx context.Context, electionID id.ElectionID, candidateIDs []id.PrincipalID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[id.PrincipalID]struct{})
	for _, existing := range s.candidacies {
		if existing.ElectionID == electionID {
			present[existing.CandidateID] = struct{}{}
		}
	}

	created := 0
	for _, candidateID := range candidateIDs {
		if _, ok := present[candidateID]; ok {
			continue
		}
		present[candidateID] = struct{}{}
		c := &memoryCandidacy{
			Candidacy: election.Candidacy{
				ID:          id.NewCandidacyID(),
				ElectionID:  electionID,
				CandidateID: candidateID,
				CreatedAt:   now,
			},
			seq: s.nextSeq,
		}
		s.nextSeq++
		s.candidacies[c.ID] = c
		created++
	}
	return created, nil
}

// ListByElection returns the election's candidacies in tally order: vote
// count descending, ties broken by registration order (first registered
// wins).
func (s *MemoryCandidacies) ListByElection(ctx context.Context, electionID id.ElectionID) ([]*election.Candidacy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ordered []*memoryCandidacy
	for _, c := range s.candidacies {
		if c.ElectionID == electionID {
			ordered = append(ordered, c)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].VoteCount != ordered[j].VoteCount {
			return ordered[i].VoteCount > ordered[j].VoteCount
		}
		return ordered[i].seq < ordered[j].seq
	})

	out := make([]*election.Candidacy, len(ordered))
	for i, c := range ordered {
		cp := c.Candidacy
		out[i] = &cp
	}
	return out, nil
}

// FindByElectionAndCandidate returns one candidacy or sentinel.ErrNotFound.
func (s *MemoryCandidacies) FindByElectionAndCandidate(ctx context.Context, electionID id.ElectionID, candidateID id.PrincipalID) (*election.Candidacy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.candidacies {
		if c.ElectionID == electionID && c.CandidateID == candidateID {
			cp := c.Candidacy
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// IncrementVote bumps a candidacy's vote count by one. Runs inside the
// same transactional section as the ballot insert.
func (s *MemoryCandidacies) IncrementVote(ctx context.Context, candidacyID id.CandidacyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.candidacies[candidacyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.VoteCount++
	return nil
}
