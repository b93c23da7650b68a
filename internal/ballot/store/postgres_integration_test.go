//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"khural/internal/ballot"
	"khural/internal/ballot/store"
	"khural/internal/election"
	electionstore "khural/internal/election/store"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	"khural/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *store.Postgres
	elections *electionstore.PostgresElections
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.elections = electionstore.NewPostgresElections(s.postgres.DB)
	s.now = time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC)
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

// createElection persists a parent election so ballot rows satisfy the
// foreign key.
func (s *PostgresStoreSuite) createElection() id.ElectionID {
	e, err := election.NewElection(
		id.NewElectionID(),
		id.NewPrincipalID(),
		election.Rung{From: election.RankArban, To: election.RankZun, Branch: election.BranchExecutive},
		id.NewScopeID(),
		"Zun of the Eastern Steppe",
		"",
		"",
		election.Window{
			NominationDeadline: s.now.Add(-2 * time.Hour),
			VotingStart:        s.now.Add(-time.Hour),
			VotingEnd:          s.now.Add(time.Hour),
		},
		1,
		s.now.Add(-3*time.Hour),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.elections.Create(context.Background(), e))
	return e.ID
}

func (s *PostgresStoreSuite) newBallot(electionID id.ElectionID, voterID id.PrincipalID) *ballot.Ballot {
	candidateID := id.NewPrincipalID()
	castAt := election.TruncateForFingerprint(s.now)
	return &ballot.Ballot{
		ID:              id.NewBallotID(),
		ElectionID:      electionID,
		VoterID:         voterID,
		CandidateID:     candidateID,
		LeafFingerprint: ballot.LeafFingerprint(electionID, voterID, candidateID, castAt),
		CastAt:          castAt,
	}
}

// TestConcurrentInsertSingleWinner verifies the one-ballot-per-voter
// constraint under contention: concurrent inserts from the same voter
// race and exactly one row lands.
func (s *PostgresStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	electionID := s.createElection()
	voterID := id.NewPrincipalID()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.Insert(ctx, s.newBallot(electionID, voterID))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one ballot should land")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	count, err := s.store.CountByElection(ctx, electionID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestInsertAndLookups() {
	ctx := context.Background()
	electionID := s.createElection()
	otherElection := s.createElection()
	voterID := id.NewPrincipalID()

	s.Require().NoError(s.store.Insert(ctx, s.newBallot(electionID, voterID)))

	s.Run("repeat insert conflicts", func() {
		err := s.store.Insert(ctx, s.newBallot(electionID, voterID))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("the same voter may vote in a different election", func() {
		s.Require().NoError(s.store.Insert(ctx, s.newBallot(otherElection, voterID)))
	})

	s.Run("has voted", func() {
		voted, err := s.store.HasVoted(ctx, electionID, voterID)
		s.Require().NoError(err)
		s.True(voted)

		voted, err = s.store.HasVoted(ctx, electionID, id.NewPrincipalID())
		s.Require().NoError(err)
		s.False(voted)
	})

	s.Run("count by election", func() {
		for i := 0; i < 3; i++ {
			s.Require().NoError(s.store.Insert(ctx, s.newBallot(electionID, id.NewPrincipalID())))
		}
		count, err := s.store.CountByElection(ctx, electionID)
		s.Require().NoError(err)
		s.Equal(4, count)

		count, err = s.store.CountByElection(ctx, otherElection)
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}
