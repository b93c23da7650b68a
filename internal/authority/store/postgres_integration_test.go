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

	"khural/internal/authority"
	"khural/internal/authority/store"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	"khural/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
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
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "authority_members", "authorities")
	s.Require().NoError(err)
}

func newTestProvisional(t *testing.T, now time.Time) (*authority.Authority, []*authority.Member) {
	t.Helper()
	memberIDs := []id.PrincipalID{id.NewPrincipalID(), id.NewPrincipalID(), id.NewPrincipalID()}
	auth, members, err := authority.NewProvisional(id.NewAuthorityID(), id.NewPrincipalID(), memberIDs, "", now)
	if err != nil {
		t.Fatalf("failed to build provisional authority: %v", err)
	}
	return auth, members
}

// TestConcurrentAppointSingleActive verifies the partial unique index:
// concurrent appointments race and exactly one provisional commission
// ends up active.
func (s *PostgresStoreSuite) TestConcurrentAppointSingleActive() {
	ctx := context.Background()
	now := time.Now().UTC()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			auth, members := newTestProvisional(s.T(), now)
			err := s.store.CreateProvisional(ctx, auth, members)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one appointment should win")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	active, members, err := s.store.FindActiveProvisional(ctx)
	s.Require().NoError(err)
	s.Equal(authority.StatusActive, active.Status)
	s.Len(members, 3)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	auth, members := newTestProvisional(s.T(), now)
	s.Require().NoError(s.store.CreateProvisional(ctx, auth, members))

	found, foundMembers, err := s.store.FindActiveProvisional(ctx)
	s.Require().NoError(err)
	s.Equal(auth.ID, found.ID)
	s.Equal(authority.KindProvisional, found.Kind)
	s.Equal(auth.Mandate, found.Mandate)
	s.True(found.CreatedAt.Equal(now))
	s.Nil(found.DissolvedAt)

	s.Require().Len(foundMembers, len(members))
	s.Equal(authority.SeatChair, foundMembers[0].SeatRole, "first appointee takes the chair")

	for _, m := range members {
		ok, err := s.store.HasActiveMember(ctx, m.PrincipalID)
		s.Require().NoError(err)
		s.True(ok)
	}

	ok, err := s.store.HasActiveMember(ctx, id.NewPrincipalID())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresStoreSuite) TestDissolutionAllowsReappointment() {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	auth, members := newTestProvisional(s.T(), now)
	s.Require().NoError(s.store.CreateProvisional(ctx, auth, members))

	dissolvedAt := now.Add(30 * 24 * time.Hour)
	dissolved, err := s.store.Execute(ctx, auth.ID,
		func(a *authority.Authority) error { return a.CanDissolve() },
		func(a *authority.Authority) { a.ApplyDissolution(dissolvedAt) },
	)
	s.Require().NoError(err)
	s.Equal(authority.StatusDissolved, dissolved.Status)
	s.Require().NotNil(dissolved.DissolvedAt)
	s.True(dissolved.DissolvedAt.Equal(dissolvedAt))

	// Members of a dissolved commission lose the capability.
	ok, err := s.store.HasActiveMember(ctx, members[0].PrincipalID)
	s.Require().NoError(err)
	s.False(ok)

	_, _, err = s.store.FindActiveProvisional(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// The partial index no longer blocks a fresh appointment.
	next, nextMembers := newTestProvisional(s.T(), dissolvedAt)
	s.Require().NoError(s.store.CreateProvisional(ctx, next, nextMembers))
}

func (s *PostgresStoreSuite) TestExecuteUnknownAuthority() {
	_, err := s.store.Execute(context.Background(), id.NewAuthorityID(),
		func(*authority.Authority) error { return nil },
		func(*authority.Authority) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
