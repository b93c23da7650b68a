package eligibility

import (
	"context"
	"sync"

	"khural/internal/election"
	id "khural/pkg/domain"
)

// MemoryDirectory is an in-memory IdentityDirectory for tests and local
// wiring without the real identity service.
type MemoryDirectory struct {
	mu    sync.RWMutex
	facts map[id.PrincipalID]IdentityFacts
}

// NewMemoryDirectory builds an empty directory; unknown principals report
// all-false facts.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{facts: make(map[id.PrincipalID]IdentityFacts)}
}

// SetFacts records the facts reported for a principal.
func (d *MemoryDirectory) SetFacts(principalID id.PrincipalID, facts IdentityFacts) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.facts[principalID] = facts
}

func (d *MemoryDirectory) Facts(_ context.Context, principalID id.PrincipalID) (IdentityFacts, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.facts[principalID], nil
}

type leadershipKey struct {
	rank   election.Rank
	branch election.Branch
	scope  id.ScopeID
}

// MemoryRegistry is an in-memory HierarchyRegistry for tests and local
// wiring without the real organization registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	leaders map[leadershipKey][]id.PrincipalID
}

// NewMemoryRegistry builds an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{leaders: make(map[leadershipKey][]id.PrincipalID)}
}

// AddLeader records a principal as leading an organization at the given
// rank and branch within the scope.
func (r *MemoryRegistry) AddLeader(principalID id.PrincipalID, rank election.Rank, branch election.Branch, scopeID id.ScopeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := leadershipKey{rank: rank, branch: branch, scope: scopeID}
	r.leaders[key] = append(r.leaders[key], principalID)
}

func (r *MemoryRegistry) IsScopeLeader(_ context.Context, principalID id.PrincipalID, rank election.Rank, branch election.Branch, scopeID id.ScopeID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, leader := range r.leaders[leadershipKey{rank: rank, branch: branch, scope: scopeID}] {
		if leader == principalID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRegistry) LeadersAt(_ context.Context, rank election.Rank, branch election.Branch, scopeID id.ScopeID) ([]id.PrincipalID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]id.PrincipalID(nil), r.leaders[leadershipKey{rank: rank, branch: branch, scope: scopeID}]...), nil
}
