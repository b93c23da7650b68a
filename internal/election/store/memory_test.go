package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
)

var storeTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func storeTestElection(t interface{ Fatalf(string, ...any) }, votingStart time.Time) *election.Election {
	e, err := election.NewElection(
		id.NewElectionID(), id.NewPrincipalID(),
		election.Rung{From: election.RankArban, To: election.RankZun, Branch: election.BranchExecutive},
		id.NewScopeID(), "Zun of the Eastern Steppe", "", "",
		election.Window{
			NominationDeadline: votingStart.Add(-24 * time.Hour),
			VotingStart:        votingStart,
			VotingEnd:          votingStart.Add(24 * time.Hour),
		}, 1, storeTestNow,
	)
	if err != nil {
		t.Fatalf("building test election: %v", err)
	}
	return e
}

type MemoryElectionsSuite struct {
	suite.Suite
	store *MemoryElections
}

func TestMemoryElectionsSuite(t *testing.T) {
	suite.Run(t, new(MemoryElectionsSuite))
}

func (s *MemoryElectionsSuite) SetupTest() {
	s.store = NewMemoryElections()
}

func (s *MemoryElectionsSuite) TestCreateAndFind() {
	ctx := context.Background()
	e := storeTestElection(s.T(), storeTestNow.Add(48*time.Hour))

	s.Require().NoError(s.store.Create(ctx, e))

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(e.Title, found.Title)

	s.Run("returns ErrNotFound for an unknown id", func() {
		_, err := s.store.FindByID(ctx, id.NewElectionID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a duplicate id", func() {
		s.Require().ErrorIs(s.store.Create(ctx, e), sentinel.ErrConflict)
	})

	s.Run("hands out copies, not aliases", func() {
		found.Title = "mutated"
		again, err := s.store.FindByID(ctx, e.ID)
		s.Require().NoError(err)
		s.NotEqual("mutated", again.Title)
	})
}

func (s *MemoryElectionsSuite) TestListFilters() {
	ctx := context.Background()

	early := storeTestElection(s.T(), storeTestNow.Add(24*time.Hour))
	late := storeTestElection(s.T(), storeTestNow.Add(96*time.Hour))
	s.Require().NoError(s.store.Create(ctx, early))
	s.Require().NoError(s.store.Create(ctx, late))

	s.Run("orders by voting start, most recent first", func() {
		out, err := s.store.List(ctx, election.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(out, 2)
		s.Equal(late.ID, out[0].ID)
		s.Equal(early.ID, out[1].ID)
	})

	s.Run("filters by scope", func() {
		out, err := s.store.List(ctx, election.ListFilter{ScopeID: &early.ScopeID})
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.Equal(early.ID, out[0].ID)
	})

	s.Run("filters by status", func() {
		voting := election.StatusVoting
		out, err := s.store.List(ctx, election.ListFilter{Status: &voting})
		s.Require().NoError(err)
		s.Empty(out)
	})

	s.Run("filters by branch and rank", func() {
		legislative := election.BranchLegislative
		out, err := s.store.List(ctx, election.ListFilter{Branch: &legislative})
		s.Require().NoError(err)
		s.Empty(out)

		from := election.RankArban
		out, err = s.store.List(ctx, election.ListFilter{FromRank: &from})
		s.Require().NoError(err)
		s.Len(out, 2)
	})
}

func (s *MemoryElectionsSuite) TestExecute() {
	ctx := context.Background()
	e := storeTestElection(s.T(), storeTestNow.Add(-time.Hour))
	s.Require().NoError(s.store.Create(ctx, e))

	updated, err := s.store.Execute(ctx, e.ID,
		func(e *election.Election) error { return e.CanAdvanceToVoting(storeTestNow) },
		func(e *election.Election) { e.ApplyAdvanceToVoting() },
	)
	s.Require().NoError(err)
	s.Equal(election.StatusVoting, updated.Status)

	s.Run("persists the mutation", func() {
		found, err := s.store.FindByID(ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(election.StatusVoting, found.Status)
	})

	s.Run("validate failure leaves the election untouched", func() {
		_, err := s.store.Execute(ctx, e.ID,
			func(e *election.Election) error { return e.CanAdvanceToVoting(storeTestNow) },
			func(e *election.Election) { e.ApplyCancellation() },
		)
		s.Require().Error(err)

		found, findErr := s.store.FindByID(ctx, e.ID)
		s.Require().NoError(findErr)
		s.Equal(election.StatusVoting, found.Status)
	})
}

type MemoryCandidaciesSuite struct {
	suite.Suite
	store *MemoryCandidacies
}

func TestMemoryCandidaciesSuite(t *testing.T) {
	suite.Run(t, new(MemoryCandidaciesSuite))
}

func (s *MemoryCandidaciesSuite) SetupTest() {
	s.store = NewMemoryCandidacies()
}

func (s *MemoryCandidaciesSuite) newCandidacy(electionID id.ElectionID, platform string) *election.Candidacy {
	return &election.Candidacy{
		ID:          id.NewCandidacyID(),
		ElectionID:  electionID,
		CandidateID: id.NewPrincipalID(),
		Platform:    platform,
		CreatedAt:   storeTestNow,
	}
}

func (s *MemoryCandidaciesSuite) TestUpsertIdempotency() {
	ctx := context.Background()
	electionID := id.NewElectionID()
	c := s.newCandidacy(electionID, "lower taxes on wool")

	first, err := s.store.Upsert(ctx, c)
	s.Require().NoError(err)

	s.Run("re-registration returns the existing candidacy", func() {
		again, err := s.store.Upsert(ctx, &election.Candidacy{
			ID:          id.NewCandidacyID(),
			ElectionID:  electionID,
			CandidateID: c.CandidateID,
			Platform:    "new platform",
			CreatedAt:   storeTestNow.Add(time.Hour),
		})
		s.Require().NoError(err)
		s.Equal(first.ID, again.ID)
		s.Equal("new platform", again.Platform)
	})

	s.Run("an empty platform does not clobber the stored one", func() {
		again, err := s.store.Upsert(ctx, &election.Candidacy{
			ID:          id.NewCandidacyID(),
			ElectionID:  electionID,
			CandidateID: c.CandidateID,
			CreatedAt:   storeTestNow,
		})
		s.Require().NoError(err)
		s.Equal("new platform", again.Platform)
	})

	s.Run("vote counts survive re-registration", func() {
		s.Require().NoError(s.store.IncrementVote(ctx, first.ID))
		again, err := s.store.Upsert(ctx, c)
		s.Require().NoError(err)
		s.Equal(1, again.VoteCount)
	})
}

func (s *MemoryCandidaciesSuite) TestCreateMissing() {
	ctx := context.Background()
	electionID := id.NewElectionID()

	existing := s.newCandidacy(electionID, "")
	_, err := s.store.Upsert(ctx, existing)
	s.Require().NoError(err)

	discovered := []id.PrincipalID{existing.CandidateID, id.NewPrincipalID(), id.NewPrincipalID()}
	created, err := s.store.CreateMissing(ctx, electionID, discovered, storeTestNow)
	s.Require().NoError(err)
	s.Equal(2, created)

	all, err := s.store.ListByElection(ctx, electionID)
	s.Require().NoError(err)
	s.Len(all, 3)

	s.Run("second pass creates nothing", func() {
		created, err := s.store.CreateMissing(ctx, electionID, discovered, storeTestNow)
		s.Require().NoError(err)
		s.Zero(created)
	})
}

func (s *MemoryCandidaciesSuite) TestTallyOrder() {
	ctx := context.Background()
	electionID := id.NewElectionID()

	first, err := s.store.Upsert(ctx, s.newCandidacy(electionID, ""))
	s.Require().NoError(err)
	second, err := s.store.Upsert(ctx, s.newCandidacy(electionID, ""))
	s.Require().NoError(err)
	third, err := s.store.Upsert(ctx, s.newCandidacy(electionID, ""))
	s.Require().NoError(err)

	// third: 2 votes; first and second tied at 1.
	s.Require().NoError(s.store.IncrementVote(ctx, third.ID))
	s.Require().NoError(s.store.IncrementVote(ctx, third.ID))
	s.Require().NoError(s.store.IncrementVote(ctx, second.ID))
	s.Require().NoError(s.store.IncrementVote(ctx, first.ID))

	ordered, err := s.store.ListByElection(ctx, electionID)
	s.Require().NoError(err)
	s.Require().Len(ordered, 3)

	s.Equal(third.ID, ordered[0].ID)
	// Tie at one vote: first registered wins.
	s.Equal(first.ID, ordered[1].ID)
	s.Equal(second.ID, ordered[2].ID)
}

func (s *MemoryCandidaciesSuite) TestFindByElectionAndCandidate() {
	ctx := context.Background()
	electionID := id.NewElectionID()
	c := s.newCandidacy(electionID, "")
	_, err := s.store.Upsert(ctx, c)
	s.Require().NoError(err)

	found, err := s.store.FindByElectionAndCandidate(ctx, electionID, c.CandidateID)
	s.Require().NoError(err)
	s.Equal(c.CandidateID, found.CandidateID)

	_, err = s.store.FindByElectionAndCandidate(ctx, electionID, id.NewPrincipalID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
