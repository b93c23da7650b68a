// Package service accepts ballots into the append-only ledger and serves
// live tallies. Every accepted ballot carries a fingerprint a voter can
// verify independently.
package service

import (
	"context"
	"errors"
	"log/slog"

	"khural/internal/ballot"
	ballotmetrics "khural/internal/ballot/metrics"
	"khural/internal/election"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/sentinel"
	"khural/pkg/platform/tx"
	"khural/pkg/requestcontext"
)

// Store is the ballot ledger persistence contract.
type Store interface {
	Insert(ctx context.Context, b *ballot.Ballot) error
	HasVoted(ctx context.Context, electionID id.ElectionID, voterID id.PrincipalID) (bool, error)
	CountByElection(ctx context.Context, electionID id.ElectionID) (int, error)
}

// ElectionReader loads elections for window and phase checks. The locked
// read runs inside the cast transaction so certification and casting
// serialize on the election row.
type ElectionReader interface {
	FindByID(ctx context.Context, electionID id.ElectionID) (*election.Election, error)
	FindByIDForUpdate(ctx context.Context, electionID id.ElectionID) (*election.Election, error)
}

// CandidacyReader resolves and tallies candidacies.
type CandidacyReader interface {
	FindByElectionAndCandidate(ctx context.Context, electionID id.ElectionID, candidateID id.PrincipalID) (*election.Candidacy, error)
	ListByElection(ctx context.Context, electionID id.ElectionID) ([]*election.Candidacy, error)
	IncrementVote(ctx context.Context, candidacyID id.CandidacyID) error
}

// Gate answers voter eligibility.
type Gate interface {
	CanVote(ctx context.Context, principalID id.PrincipalID, e *election.Election) error
}

// Service is the ballot ledger orchestrator.
type Service struct {
	ballots     Store
	elections   ElectionReader
	candidacies CandidacyReader
	gate        Gate
	cache       *TallyCache
	runner      tx.Runner
	logger      *slog.Logger
	metrics     *ballotmetrics.Metrics
}

// New wires the ballot service. cache may be nil.
func New(
	ballots Store,
	elections ElectionReader,
	candidacies CandidacyReader,
	gate Gate,
	cache *TallyCache,
	runner tx.Runner,
	logger *slog.Logger,
	metrics *ballotmetrics.Metrics,
) *Service {
	return &Service{
		ballots:     ballots,
		elections:   elections,
		candidacies: candidacies,
		gate:        gate,
		cache:       cache,
		runner:      runner,
		logger:      logger,
		metrics:     metrics,
	}
}

// Cast appends one ballot to the ledger. Eligibility runs outside the
// write transaction; the phase and window checks run again inside it
// against a locked election row, and the one-ballot-per-voter rule is
// enforced by the store's uniqueness guarantee, so two concurrent casts by
// the same voter admit exactly one ballot.
func (s *Service) Cast(ctx context.Context, voterID id.PrincipalID, electionID id.ElectionID, candidateID id.PrincipalID) (*ballot.Ballot, error) {
	now := requestcontext.Now(ctx)

	e, err := s.findElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if err := e.CanCast(now); err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}

	candidacy, err := s.candidacies.FindByElectionAndCandidate(ctx, electionID, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementRejected(string(dErrors.CodeInvalidInput))
			return nil, dErrors.New(dErrors.CodeInvalidInput, "candidate is not registered in this election")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidacy")
	}

	if err := s.gate.CanVote(ctx, voterID, e); err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}

	castAt := election.TruncateForFingerprint(now)
	b := &ballot.Ballot{
		ID:              id.NewBallotID(),
		ElectionID:      electionID,
		VoterID:         voterID,
		CandidateID:     candidateID,
		LeafFingerprint: ballot.LeafFingerprint(electionID, voterID, candidateID, castAt),
		CastAt:          castAt,
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.elections.FindByIDForUpdate(txCtx, electionID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
		}
		if err := locked.CanCast(now); err != nil {
			return err
		}
		if err := s.ballots.Insert(txCtx, b); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyVoted, "voter has already cast a ballot in this election")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert ballot")
		}
		if err := s.candidacies.IncrementVote(txCtx, candidacy.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment vote count")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.logger.InfoContext(ctx, "ballot cast",
		"election_id", electionID,
		"ballot_id", b.ID,
		"fingerprint", b.LeafFingerprint,
	)
	s.metrics.IncrementCast()
	return b, nil
}

// Tally returns the ordered live tally for an election, served through a
// short-TTL cache. A slightly stale tally is acceptable here; the
// certified result never comes from this path.
func (s *Service) Tally(ctx context.Context, electionID id.ElectionID) ([]election.TallyEntry, error) {
	if cached, err := s.cache.Get(ctx, electionID); err != nil {
		s.logger.WarnContext(ctx, "tally cache read failed", "election_id", electionID, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	candidacies, err := s.candidacies.ListByElection(ctx, electionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidacies")
	}
	tally := make([]election.TallyEntry, 0, len(candidacies))
	for _, c := range candidacies {
		tally = append(tally, election.TallyEntry{CandidateID: c.CandidateID, Votes: c.VoteCount})
	}

	if err := s.cache.Set(ctx, electionID, tally); err != nil {
		s.logger.WarnContext(ctx, "tally cache write failed", "election_id", electionID, "error", err)
	}
	return tally, nil
}

// HasVoted reports whether the voter already holds a ballot in the
// election.
func (s *Service) HasVoted(ctx context.Context, electionID id.ElectionID, voterID id.PrincipalID) (bool, error) {
	return s.ballots.HasVoted(ctx, electionID, voterID)
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
