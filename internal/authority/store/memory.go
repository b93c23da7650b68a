// Package store provides the authority persistence implementations. The
// memory store backs unit tests and local runs; the postgres store is the
// production backend. Both enforce the single-active-provisional invariant
// at the storage layer.
package store

import (
	"context"
	"sort"
	"sync"

	"khural/internal/authority"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

// Memory is the in-memory authority store.
type Memory struct {
	mu          sync.RWMutex
	authorities map[id.AuthorityID]*authority.Authority
	members     map[id.AuthorityID][]*authority.Member
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		authorities: make(map[id.AuthorityID]*authority.Authority),
		members:     make(map[id.AuthorityID][]*authority.Member),
	}
}

// CreateProvisional persists a new provisional authority with its members.
// Returns sentinel.ErrConflict when an ACTIVE provisional authority already
// exists.
func (s *Memory) CreateProvisional(ctx context.Context, auth *authority.Authority, members []*authority.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.authorities {
		if existing.Kind == authority.KindProvisional && existing.Status == authority.StatusActive {
			return sentinel.ErrConflict
		}
	}

	s.authorities[auth.ID] = auth.Clone()
	stored := make([]*authority.Member, len(members))
	for i, m := range members {
		cp := *m
		stored[i] = &cp
	}
	s.members[auth.ID] = stored
	return nil
}

// FindActiveProvisional returns the ACTIVE provisional authority and its
// members, or sentinel.ErrNotFound.
func (s *Memory) FindActiveProvisional(ctx context.Context) (*authority.Authority, []*authority.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findActiveLocked(func(a *authority.Authority) bool {
		return a.Kind == authority.KindProvisional && a.Status == authority.StatusActive
	})
}

// FindActive returns the most recently created ACTIVE authority of any
// kind, or sentinel.ErrNotFound.
func (s *Memory) FindActive(ctx context.Context) (*authority.Authority, []*authority.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findActiveLocked(func(a *authority.Authority) bool {
		return a.Status == authority.StatusActive
	})
}

func (s *Memory) findActiveLocked(match func(*authority.Authority) bool) (*authority.Authority, []*authority.Member, error) {
	var candidates []*authority.Authority
	for _, a := range s.authorities {
		if match(a) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, sentinel.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	found := candidates[0]
	members := make([]*authority.Member, len(s.members[found.ID]))
	for i, m := range s.members[found.ID] {
		cp := *m
		members[i] = &cp
	}
	return found.Clone(), members, nil
}

// HasActiveMember reports whether the principal holds a seat on any ACTIVE
// authority.
func (s *Memory) HasActiveMember(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for authID, members := range s.members {
		auth, ok := s.authorities[authID]
		if !ok || auth.Status != authority.StatusActive {
			continue
		}
		for _, m := range members {
			if m.PrincipalID == principalID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Execute atomically validates and mutates one authority under the store
// lock, so concurrent dissolutions cannot interleave between check and
// write.
func (s *Memory) Execute(
	ctx context.Context,
	authorityID id.AuthorityID,
	validate func(*authority.Authority) error,
	apply func(*authority.Authority),
) (*authority.Authority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.authorities[authorityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(auth); err != nil {
		return nil, err
	}
	apply(auth)
	return auth.Clone(), nil
}
