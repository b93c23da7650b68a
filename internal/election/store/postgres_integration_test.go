//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"khural/internal/election"
	"khural/internal/election/store"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/sentinel"
	"khural/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	elections   *store.PostgresElections
	candidacies *store.PostgresCandidacies
	now         time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.elections = store.NewPostgresElections(s.postgres.DB)
	s.candidacies = store.NewPostgresCandidacies(s.postgres.DB)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "ballots", "candidacies", "elections")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newElection(rung election.Rung, scopeID id.ScopeID, votingStart time.Time) *election.Election {
	e, err := election.NewElection(
		id.NewElectionID(),
		id.NewPrincipalID(),
		rung,
		scopeID,
		"Zun of the Eastern Steppe",
		"",
		"",
		election.Window{
			NominationDeadline: votingStart.Add(-24 * time.Hour),
			VotingStart:        votingStart,
			VotingEnd:          votingStart.Add(24 * time.Hour),
		},
		1,
		s.now,
	)
	s.Require().NoError(err)
	return e
}

func (s *PostgresStoreSuite) createElection() *election.Election {
	e := s.newElection(
		election.Rung{From: election.RankArban, To: election.RankZun, Branch: election.BranchExecutive},
		id.NewScopeID(),
		s.now.Add(48*time.Hour),
	)
	s.Require().NoError(s.elections.Create(context.Background(), e))
	return e
}

func (s *PostgresStoreSuite) TestElectionRoundTrip() {
	ctx := context.Background()
	e := s.createElection()

	found, err := s.elections.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(e.Rung, found.Rung)
	s.Equal(e.ScopeID, found.ScopeID)
	s.Equal(e.ScopeName, found.ScopeName)
	s.Equal(e.Title, found.Title)
	s.Equal(election.StatusNomination, found.Status)
	s.Equal(1, found.SeatCount)
	s.True(found.Window.VotingStart.Equal(e.Window.VotingStart))
	s.Zero(found.TotalVotes)
	s.Nil(found.CertifiedAt)
	s.Empty(found.ResultFingerprint)
	s.Empty(found.WinnerIDs)

	_, err = s.elections.FindByID(ctx, id.NewElectionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestStatusUpdateBeforeCertification covers the non-terminal update path:
// status moves while the certification columns stay at their defaults.
func (s *PostgresStoreSuite) TestStatusUpdateBeforeCertification() {
	ctx := context.Background()
	e := s.createElection()

	e.ApplyAdvanceToVoting()
	s.Require().NoError(s.elections.Update(ctx, e))

	found, err := s.elections.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(election.StatusVoting, found.Status)
	s.Empty(found.ResultFingerprint)
	s.Nil(found.CertifiedAt)
}

func (s *PostgresStoreSuite) TestCertificationRoundTrip() {
	ctx := context.Background()
	e := s.createElection()
	e.ApplyAdvanceToVoting()
	s.Require().NoError(s.elections.Update(ctx, e))

	winners := []election.TallyEntry{
		{CandidateID: id.NewPrincipalID(), Votes: 5},
		{CandidateID: id.NewPrincipalID(), Votes: 3},
	}
	certifiedAt := election.TruncateForFingerprint(e.Window.VotingEnd.Add(time.Hour))
	e.ApplyCertification(election.CertificationRecord{
		TotalVotes:        8,
		WinnerIDs:         []id.PrincipalID{winners[0].CandidateID, winners[1].CandidateID},
		ResultFingerprint: election.ResultFingerprint(e.ID, winners, 8, certifiedAt),
		CertifiedAt:       certifiedAt,
	})
	s.Require().NoError(s.elections.Update(ctx, e))

	found, err := s.elections.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(election.StatusCertified, found.Status)
	s.Equal(8, found.TotalVotes)
	s.Require().NotNil(found.CertifiedAt)
	s.True(found.CertifiedAt.Equal(certifiedAt))
	s.Equal(e.ResultFingerprint, found.ResultFingerprint)
	s.Equal([]id.PrincipalID{winners[0].CandidateID, winners[1].CandidateID}, found.WinnerIDs,
		"winner order survives the round trip")
}

func (s *PostgresStoreSuite) TestExecuteValidationLeavesRowUntouched() {
	ctx := context.Background()
	e := s.createElection()

	_, err := s.elections.Execute(ctx, e.ID,
		func(e *election.Election) error { return e.CanAdvanceToVoting(s.now) },
		func(e *election.Election) { e.ApplyAdvanceToVoting() },
	)
	s.Require().Error(err, "voting window has not started")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	found, err := s.elections.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(election.StatusNomination, found.Status)
}

func (s *PostgresStoreSuite) TestList() {
	ctx := context.Background()
	scopeID := id.NewScopeID()

	older := s.newElection(
		election.Rung{From: election.RankArban, To: election.RankZun, Branch: election.BranchExecutive},
		scopeID,
		s.now.Add(24*time.Hour),
	)
	newer := s.newElection(
		election.Rung{From: election.RankZun, To: election.RankMyangan, Branch: election.BranchJudicial},
		scopeID,
		s.now.Add(72*time.Hour),
	)
	elsewhere := s.newElection(
		election.Rung{From: election.RankArban, To: election.RankZun, Branch: election.BranchExecutive},
		id.NewScopeID(),
		s.now.Add(48*time.Hour),
	)
	for _, e := range []*election.Election{older, newer, elsewhere} {
		s.Require().NoError(s.elections.Create(ctx, e))
	}

	s.Run("orders by voting start, newest first", func() {
		all, err := s.elections.List(ctx, election.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(all, 3)
		s.Equal(newer.ID, all[0].ID)
		s.Equal(elsewhere.ID, all[1].ID)
		s.Equal(older.ID, all[2].ID)
	})

	s.Run("filters by scope", func() {
		scoped, err := s.elections.List(ctx, election.ListFilter{ScopeID: &scopeID})
		s.Require().NoError(err)
		s.Len(scoped, 2)
	})

	s.Run("filters compose", func() {
		branch := election.BranchJudicial
		fromRank := election.RankZun
		filtered, err := s.elections.List(ctx, election.ListFilter{
			Branch:   &branch,
			FromRank: &fromRank,
			ScopeID:  &scopeID,
		})
		s.Require().NoError(err)
		s.Require().Len(filtered, 1)
		s.Equal(newer.ID, filtered[0].ID)
	})
}

func (s *PostgresStoreSuite) TestCandidacyUpsert() {
	ctx := context.Background()
	e := s.createElection()
	candidateID := id.NewPrincipalID()

	first, err := s.candidacies.Upsert(ctx, &election.Candidacy{
		ID:          id.NewCandidacyID(),
		ElectionID:  e.ID,
		CandidateID: candidateID,
		Platform:    "Pasture reform",
		CreatedAt:   s.now,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.candidacies.IncrementVote(ctx, first.ID))

	// A repeat registration refreshes the platform without minting a new
	// row or resetting the counter.
	second, err := s.candidacies.Upsert(ctx, &election.Candidacy{
		ID:          id.NewCandidacyID(),
		ElectionID:  e.ID,
		CandidateID: candidateID,
		Platform:    "Pasture reform, revised",
		CreatedAt:   s.now.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal("Pasture reform, revised", second.Platform)
	s.Equal(1, second.VoteCount)
}

func (s *PostgresStoreSuite) TestCreateMissing() {
	ctx := context.Background()
	e := s.createElection()
	existing := id.NewPrincipalID()

	_, err := s.candidacies.Upsert(ctx, &election.Candidacy{
		ID:          id.NewCandidacyID(),
		ElectionID:  e.ID,
		CandidateID: existing,
		CreatedAt:   s.now,
	})
	s.Require().NoError(err)

	created, err := s.candidacies.CreateMissing(ctx, e.ID,
		[]id.PrincipalID{existing, id.NewPrincipalID(), id.NewPrincipalID()}, s.now)
	s.Require().NoError(err)
	s.Equal(2, created, "only the absent candidates are added")

	listed, err := s.candidacies.ListByElection(ctx, e.ID)
	s.Require().NoError(err)
	s.Len(listed, 3)
}

func (s *PostgresStoreSuite) TestTallyOrder() {
	ctx := context.Background()
	e := s.createElection()

	register := func(createdAt time.Time) *election.Candidacy {
		c, err := s.candidacies.Upsert(ctx, &election.Candidacy{
			ID:          id.NewCandidacyID(),
			ElectionID:  e.ID,
			CandidateID: id.NewPrincipalID(),
			CreatedAt:   createdAt,
		})
		s.Require().NoError(err)
		return c
	}

	early := register(s.now)
	late := register(s.now.Add(time.Minute))
	leader := register(s.now.Add(2 * time.Minute))

	s.Require().NoError(s.candidacies.IncrementVote(ctx, leader.ID))
	s.Require().NoError(s.candidacies.IncrementVote(ctx, leader.ID))
	s.Require().NoError(s.candidacies.IncrementVote(ctx, early.ID))
	s.Require().NoError(s.candidacies.IncrementVote(ctx, late.ID))

	listed, err := s.candidacies.ListByElection(ctx, e.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(leader.ID, listed[0].ID, "highest vote count first")
	s.Equal(early.ID, listed[1].ID, "ties broken by registration order")
	s.Equal(late.ID, listed[2].ID)

	_, err = s.candidacies.FindByElectionAndCandidate(ctx, e.ID, id.NewPrincipalID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
