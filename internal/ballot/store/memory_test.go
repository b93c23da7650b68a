package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"khural/internal/ballot"
	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
}

func newTestBallot(electionID id.ElectionID, voterID id.PrincipalID) *ballot.Ballot {
	candidateID := id.NewPrincipalID()
	castAt := election.TruncateForFingerprint(time.Now())
	return &ballot.Ballot{
		ID:              id.NewBallotID(),
		ElectionID:      electionID,
		VoterID:         voterID,
		CandidateID:     candidateID,
		LeafFingerprint: ballot.LeafFingerprint(electionID, voterID, candidateID, castAt),
		CastAt:          castAt,
	}
}

func (s *MemoryStoreSuite) TestInsertUniqueness() {
	ctx := context.Background()
	electionID := id.NewElectionID()
	voterID := id.NewPrincipalID()

	s.Require().NoError(s.store.Insert(ctx, newTestBallot(electionID, voterID)))

	s.Run("rejects a second ballot by the same voter", func() {
		err := s.store.Insert(ctx, newTestBallot(electionID, voterID))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("accepts the same voter in a different election", func() {
		s.Require().NoError(s.store.Insert(ctx, newTestBallot(id.NewElectionID(), voterID)))
	})
}

func (s *MemoryStoreSuite) TestHasVotedAndCount() {
	ctx := context.Background()
	electionID := id.NewElectionID()
	voterID := id.NewPrincipalID()

	voted, err := s.store.HasVoted(ctx, electionID, voterID)
	s.Require().NoError(err)
	s.False(voted)

	s.Require().NoError(s.store.Insert(ctx, newTestBallot(electionID, voterID)))
	s.Require().NoError(s.store.Insert(ctx, newTestBallot(electionID, id.NewPrincipalID())))

	voted, err = s.store.HasVoted(ctx, electionID, voterID)
	s.Require().NoError(err)
	s.True(voted)

	count, err := s.store.CountByElection(ctx, electionID)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.CountByElection(ctx, id.NewElectionID())
	s.Require().NoError(err)
	s.Zero(count)
}

// Concurrent duplicate casts must admit exactly one ballot.
func (s *MemoryStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	electionID := id.NewElectionID()
	voterID := id.NewPrincipalID()

	const attempts = 32
	var accepted atomic.Int32
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if err := s.store.Insert(ctx, newTestBallot(electionID, voterID)); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), accepted.Load())

	count, err := s.store.CountByElection(ctx, electionID)
	s.Require().NoError(err)
	s.Equal(1, count)
}
