// Package service orchestrates the election lifecycle: creation on a
// legal ladder rung, candidacy registration, the explicit opening of
// voting, cancellation, and result certification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"khural/internal/election"
	electionmetrics "khural/internal/election/metrics"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/sentinel"
	"khural/pkg/platform/tx"
	"khural/pkg/requestcontext"
)

// ElectionStore is the election persistence contract.
type ElectionStore interface {
	Create(ctx context.Context, e *election.Election) error
	FindByID(ctx context.Context, electionID id.ElectionID) (*election.Election, error)
	FindByIDForUpdate(ctx context.Context, electionID id.ElectionID) (*election.Election, error)
	List(ctx context.Context, filter election.ListFilter) ([]*election.Election, error)
	Execute(ctx context.Context, electionID id.ElectionID,
		validate func(*election.Election) error,
		apply func(*election.Election)) (*election.Election, error)
	Update(ctx context.Context, e *election.Election) error
}

// CandidacyStore is the candidacy persistence contract.
type CandidacyStore interface {
	Upsert(ctx context.Context, c *election.Candidacy) (*election.Candidacy, error)
	CreateMissing(ctx context.Context, electionID id.ElectionID, candidateIDs []id.PrincipalID, now time.Time) (int, error)
	ListByElection(ctx context.Context, electionID id.ElectionID) ([]*election.Candidacy, error)
}

// Ledger is the slice of the ballot ledger this service reads: the
// independent ballot count used for display and for the certification
// cross-check.
type Ledger interface {
	CountByElection(ctx context.Context, electionID id.ElectionID) (int, error)
}

// Membership answers the commission capability check.
type Membership interface {
	IsActiveMember(ctx context.Context, principalID id.PrincipalID) (bool, error)
}

// Gate answers candidacy eligibility.
type Gate interface {
	CanStand(ctx context.Context, principalID id.PrincipalID, e *election.Election) error
}

// Discovery lists current from-rank leaders for candidate auto-discovery.
type Discovery interface {
	LeadersAt(ctx context.Context, rank election.Rank, branch election.Branch, scopeID id.ScopeID) ([]id.PrincipalID, error)
}

// Events records lifecycle events in the caller's transaction.
type Events interface {
	ElectionCreated(ctx context.Context, e *election.Election) error
	ElectionCertified(ctx context.Context, e *election.Election) error
}

// Service is the election lifecycle orchestrator.
type Service struct {
	elections   ElectionStore
	candidacies CandidacyStore
	ballots     Ledger
	membership  Membership
	gate        Gate
	discovery   Discovery
	events      Events
	runner      tx.Runner
	logger      *slog.Logger
	metrics     *electionmetrics.Metrics
}

// New wires the election service.
func New(
	elections ElectionStore,
	candidacies CandidacyStore,
	ballots Ledger,
	membership Membership,
	gate Gate,
	discovery Discovery,
	events Events,
	runner tx.Runner,
	logger *slog.Logger,
	metrics *electionmetrics.Metrics,
) *Service {
	return &Service{
		elections:   elections,
		candidacies: candidacies,
		ballots:     ballots,
		membership:  membership,
		gate:        gate,
		discovery:   discovery,
		events:      events,
		runner:      runner,
		logger:      logger,
		metrics:     metrics,
	}
}

// CreateParams is the input for Create.
type CreateParams struct {
	Rung        election.Rung
	ScopeID     id.ScopeID
	ScopeName   string
	Title       string
	Description string
	Window      election.Window
	SeatCount   int
}

// Detail is an election with its candidacies in tally order and the
// independent ballot count.
type Detail struct {
	Election    *election.Election
	Candidacies []*election.Candidacy
	BallotCount int
}

func (s *Service) requireActiveMember(ctx context.Context, principalID id.PrincipalID) error {
	ok, err := s.membership.IsActiveMember(ctx, principalID)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "must be an active commission member")
	}
	return nil
}

// Create opens a new election in the NOMINATION phase. Current from-rank
// leaders in the scope are auto-registered as candidates; they may later
// attach a platform through candidacy registration.
//
// Leader discovery talks to the hierarchy registry, so it completes before
// the write transaction opens.
func (s *Service) Create(ctx context.Context, requesterID id.PrincipalID, params CreateParams) (*Detail, error) {
	if err := s.requireActiveMember(ctx, requesterID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	e, err := election.NewElection(
		id.NewElectionID(), requesterID,
		params.Rung, params.ScopeID, params.ScopeName,
		params.Title, params.Description,
		params.Window, params.SeatCount, now,
	)
	if err != nil {
		return nil, err
	}

	discovered, err := s.discoverCandidates(ctx, e)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.elections.Create(txCtx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create election")
		}
		if len(discovered) > 0 {
			if _, err := s.candidacies.CreateMissing(txCtx, e.ID, discovered, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register discovered candidates")
			}
		}
		if err := s.events.ElectionCreated(txCtx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record election event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "election created",
		"election_id", e.ID,
		"branch", e.Rung.Branch,
		"from_rank", e.Rung.From,
		"to_rank", e.Rung.To,
		"scope", e.ScopeName,
		"discovered_candidates", len(discovered),
	)
	s.metrics.IncrementCreated()

	return s.Get(ctx, e.ID)
}

// discoverableRanks are the from-ranks whose leaders are registered
// organizations in the hierarchy. Family has no organization to discover
// from; the two top ranks are seated through the ladder itself.
var discoverableRanks = map[election.Rank]struct{}{
	election.RankArban:   {},
	election.RankZun:     {},
	election.RankMyangan: {},
	election.RankTumen:   {},
}

func (s *Service) discoverCandidates(ctx context.Context, e *election.Election) ([]id.PrincipalID, error) {
	if _, ok := discoverableRanks[e.Rung.From]; !ok {
		return nil, nil
	}
	leaders, err := s.discovery.LeadersAt(ctx, e.Rung.From, e.Rung.Branch, e.ScopeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hierarchy registry lookup failed")
	}
	return leaders, nil
}

// RegisterCandidacy registers a candidate in an election during the
// NOMINATION phase. Idempotent per (election, candidate): re-registration
// returns the existing candidacy with its platform refreshed.
func (s *Service) RegisterCandidacy(ctx context.Context, candidateID id.PrincipalID, electionID id.ElectionID, platform string) (*election.Candidacy, error) {
	e, err := s.findElection(ctx, electionID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := e.CanRegisterCandidacy(now); err != nil {
		return nil, err
	}
	if err := s.gate.CanStand(ctx, candidateID, e); err != nil {
		return nil, err
	}

	c, err := s.candidacies.Upsert(ctx, &election.Candidacy{
		ID:          id.NewCandidacyID(),
		ElectionID:  electionID,
		CandidateID: candidateID,
		Platform:    platform,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register candidacy")
	}

	s.logger.InfoContext(ctx, "candidacy registered",
		"election_id", electionID,
		"candidate_id", candidateID,
	)
	return c, nil
}

// AdvanceToVoting opens the voting phase. Opening voting is an explicit
// commission action: it is never inferred from the first ballot, so
// commission members always see the phase change they initiated.
func (s *Service) AdvanceToVoting(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*election.Election, error) {
	if err := s.requireActiveMember(ctx, requesterID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	e, err := s.executeTransition(ctx, electionID,
		func(e *election.Election) error { return e.CanAdvanceToVoting(now) },
		func(e *election.Election) { e.ApplyAdvanceToVoting() },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "voting opened",
		"election_id", e.ID,
		"voting_end", e.Window.VotingEnd,
	)
	return e, nil
}

// Cancel moves a non-terminal election into the terminal CANCELLED phase.
func (s *Service) Cancel(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*election.Election, error) {
	if err := s.requireActiveMember(ctx, requesterID); err != nil {
		return nil, err
	}

	e, err := s.executeTransition(ctx, electionID,
		func(e *election.Election) error { return e.CanCancel() },
		func(e *election.Election) { e.ApplyCancellation() },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "election cancelled", "election_id", e.ID)
	s.metrics.IncrementCancelled()
	return e, nil
}

func (s *Service) executeTransition(
	ctx context.Context,
	electionID id.ElectionID,
	validate func(*election.Election) error,
	apply func(*election.Election),
) (*election.Election, error) {
	var out *election.Election
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.elections.Execute(txCtx, electionID, validate, apply)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update election")
	}
	return out, nil
}

// List returns elections matching the filter, most recent voting start
// first.
func (s *Service) List(ctx context.Context, filter election.ListFilter) ([]*election.Election, error) {
	elections, err := s.elections.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list elections")
	}
	return elections, nil
}

// Get returns one election with its candidacies in tally order and the
// ballot count.
func (s *Service) Get(ctx context.Context, electionID id.ElectionID) (*Detail, error) {
	e, err := s.findElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	candidacies, err := s.candidacies.ListByElection(ctx, electionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidacies")
	}
	count, err := s.ballots.CountByElection(ctx, electionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count ballots")
	}
	return &Detail{Election: e, Candidacies: candidacies, BallotCount: count}, nil
}

// LadderStatus is the rung-by-branch snapshot of a scope's elections.
type LadderStatus struct {
	// Ladder maps "FROM->TO" rung keys to the election per branch.
	Ladder map[string]map[election.Branch]*election.Election
	All    []*election.Election
}

// LadderStatus returns the election ladder snapshot for one scope.
func (s *Service) LadderStatus(ctx context.Context, scopeID id.ScopeID) (*LadderStatus, error) {
	elections, err := s.elections.List(ctx, election.ListFilter{ScopeID: &scopeID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list elections")
	}

	status := &LadderStatus{
		Ladder: make(map[string]map[election.Branch]*election.Election),
		All:    elections,
	}
	for _, e := range elections {
		rung := string(e.Rung.From) + "->" + string(e.Rung.To)
		if status.Ladder[rung] == nil {
			status.Ladder[rung] = make(map[election.Branch]*election.Election)
		}
		status.Ladder[rung][e.Rung.Branch] = e
	}
	return status, nil
}

func (s *Service) findElection(ctx context.Context, electionID id.ElectionID) (*election.Election, error) {
	e, err := s.elections.FindByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
	}
	return e, nil
}
