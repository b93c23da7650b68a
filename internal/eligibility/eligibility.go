// Package eligibility answers "may this principal stand" and "may this
// principal vote" by consulting the external identity and hierarchy
// collaborators. Both predicates are pure reads with no side effects.
//
// Collaborator lookups never hold database locks: callers resolve
// eligibility facts before opening the write transaction.
package eligibility

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"khural/internal/election"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
)

// factsTimeout bounds the parallel collaborator fan-out for one check.
const factsTimeout = 3 * time.Second

// IdentityFacts are the boolean facts the identity service supplies about
// a principal.
type IdentityFacts struct {
	Verified     bool
	LegalSubject bool
}

// IdentityDirectory is the external identity/verification service.
type IdentityDirectory interface {
	Facts(ctx context.Context, principalID id.PrincipalID) (IdentityFacts, error)
}

// HierarchyRegistry is the external hierarchy/organization registry.
type HierarchyRegistry interface {
	// IsScopeLeader reports whether the principal currently leads an
	// organization at the given rank and branch within the scope.
	IsScopeLeader(ctx context.Context, principalID id.PrincipalID, rank election.Rank, branch election.Branch, scopeID id.ScopeID) (bool, error)

	// LeadersAt lists the principals currently leading organizations at
	// the given rank and branch within the scope. Used to auto-discover
	// candidates when an election is created.
	LeadersAt(ctx context.Context, rank election.Rank, branch election.Branch, scopeID id.ScopeID) ([]id.PrincipalID, error)
}

// BallotReader answers whether a voter already holds a ballot. The ballot
// ledger is the single source of truth for that fact.
type BallotReader interface {
	HasVoted(ctx context.Context, electionID id.ElectionID, voterID id.PrincipalID) (bool, error)
}

// Gate evaluates candidacy and voting eligibility.
type Gate struct {
	identity  IdentityDirectory
	hierarchy HierarchyRegistry
	ballots   BallotReader
}

// NewGate wires the gate to its collaborators.
func NewGate(identity IdentityDirectory, hierarchy HierarchyRegistry, ballots BallotReader) *Gate {
	return &Gate{identity: identity, hierarchy: hierarchy, ballots: ballots}
}

// CanStand checks whether the principal may register as a candidate in the
// election: a verified legal subject who currently leads a from-rank
// organization of the election's branch within its scope.
//
// Identity and hierarchy facts are independent, so they are gathered in
// parallel with shared cancellation.
func (g *Gate) CanStand(ctx context.Context, principalID id.PrincipalID, e *election.Election) error {
	ctx, cancel := context.WithTimeout(ctx, factsTimeout)
	defer cancel()

	var (
		facts  IdentityFacts
		leader bool
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		f, err := g.identity.Facts(ctx, principalID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "identity directory lookup failed")
		}
		facts = f
		return nil
	})
	eg.Go(func() error {
		ok, err := g.hierarchy.IsScopeLeader(ctx, principalID, e.Rung.From, e.Rung.Branch, e.ScopeID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "hierarchy registry lookup failed")
		}
		leader = ok
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	if !facts.Verified || !facts.LegalSubject {
		return dErrors.New(dErrors.CodeForbidden, "must be a verified legal subject to stand for election")
	}
	if !leader {
		return dErrors.Newf(dErrors.CodeForbidden,
			"must lead a %s %s organization in this scope to stand", e.Rung.From, e.Rung.Branch)
	}
	return nil
}

// CanVote checks whether the principal may cast a ballot in the election:
// a current from-rank leader in the election's scope who has not voted yet.
// The already-voted fact is delegated to the ballot ledger.
func (g *Gate) CanVote(ctx context.Context, principalID id.PrincipalID, e *election.Election) error {
	leader, err := g.hierarchy.IsScopeLeader(ctx, principalID, e.Rung.From, e.Rung.Branch, e.ScopeID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hierarchy registry lookup failed")
	}
	if !leader {
		return dErrors.Newf(dErrors.CodeForbidden,
			"only %s %s leaders in this scope may vote", e.Rung.From, e.Rung.Branch)
	}

	voted, err := g.ballots.HasVoted(ctx, e.ID, principalID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "ballot lookup failed")
	}
	if voted {
		return dErrors.New(dErrors.CodeAlreadyVoted, "already voted in this election")
	}
	return nil
}
