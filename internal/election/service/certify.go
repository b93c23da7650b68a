package service

import (
	"context"
	"errors"
	"time"

	"khural/internal/election"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/sentinel"
	"khural/pkg/requestcontext"
)

// Certification is the outcome of a successful Certify call.
type Certification struct {
	Election *election.Election
	Tally    []election.TallyEntry
}

// Certify closes a voting-phase election whose window has ended, freezes
// the tally, and commits to the result with a SHA-256 fingerprint. The
// whole computation runs in one transaction against a row-locked election,
// so concurrent certify calls serialize and exactly one writes the record.
func (s *Service) Certify(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*Certification, error) {
	if err := s.requireActiveMember(ctx, requesterID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	started := time.Now()

	var out Certification
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.elections.FindByIDForUpdate(txCtx, electionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "election not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
		}
		if err := e.CanCertify(now); err != nil {
			return err
		}

		candidacies, err := s.candidacies.ListByElection(txCtx, electionID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidacies")
		}
		tally := make([]election.TallyEntry, 0, len(candidacies))
		for _, c := range candidacies {
			tally = append(tally, election.TallyEntry{CandidateID: c.CandidateID, Votes: c.VoteCount})
		}

		ballotCount, err := s.ballots.CountByElection(txCtx, electionID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count ballots")
		}

		winners := tally
		if len(winners) > e.SeatCount {
			winners = winners[:e.SeatCount]
		}

		certifiedAt := election.TruncateForFingerprint(now)
		winnerIDs := make([]id.PrincipalID, 0, len(winners))
		for _, w := range winners {
			winnerIDs = append(winnerIDs, w.CandidateID)
		}

		e.ApplyCertification(election.CertificationRecord{
			TotalVotes:        ballotCount,
			WinnerIDs:         winnerIDs,
			ResultFingerprint: election.ResultFingerprint(e.ID, winners, ballotCount, certifiedAt),
			CertifiedAt:       certifiedAt,
		})
		if err := s.elections.Update(txCtx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write certification")
		}
		if err := s.events.ElectionCertified(txCtx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record certification event")
		}

		out = Certification{Election: e, Tally: tally}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "election certified",
		"election_id", electionID,
		"total_votes", out.Election.TotalVotes,
		"winners", len(out.Election.WinnerIDs),
		"fingerprint", out.Election.ResultFingerprint,
	)
	s.metrics.IncrementCertified()
	s.metrics.ObserveCertifyDuration(time.Since(started))

	return &out, nil
}
