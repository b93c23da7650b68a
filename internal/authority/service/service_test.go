package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"khural/internal/authority"
	"khural/internal/authority/store"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/tx"
	"khural/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	service   *Service
	bootstrap id.PrincipalID
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.bootstrap = id.NewPrincipalID()
	s.now = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.service = New(store.NewMemory(), s.bootstrap, tx.NewMemoryRunner(), slog.New(slog.DiscardHandler), nil)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) memberIDs(n int) []id.PrincipalID {
	out := make([]id.PrincipalID, n)
	for i := range out {
		out[i] = id.NewPrincipalID()
	}
	return out
}

func (s *ServiceSuite) TestAppointProvisional() {
	s.Run("appoints with the bootstrap principal", func() {
		auth, members, err := s.service.AppointProvisional(s.ctx(), s.bootstrap, s.memberIDs(3), "")
		s.Require().NoError(err)
		s.Equal(authority.KindProvisional, auth.Kind)
		s.Equal(authority.StatusActive, auth.Status)
		s.Equal(authority.DefaultProvisionalMandate, auth.Mandate)
		s.Len(members, 3)
	})

	s.Run("a second appointment returns the existing commission", func() {
		existing, _, err := s.service.GetActive(s.ctx())
		s.Require().NoError(err)
		s.Require().NotNil(existing)

		again, _, err := s.service.AppointProvisional(s.ctx(), s.bootstrap, s.memberIDs(5), "another mandate")
		s.Require().NoError(err)
		s.Equal(existing.ID, again.ID)
	})
}

func (s *ServiceSuite) TestAppointForbidden() {
	_, _, err := s.service.AppointProvisional(s.ctx(), id.NewPrincipalID(), s.memberIDs(3), "")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestAppointValidation() {
	_, _, err := s.service.AppointProvisional(s.ctx(), s.bootstrap, s.memberIDs(2), "")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestDissolveProvisional() {
	members := s.memberIDs(3)
	_, _, err := s.service.AppointProvisional(s.ctx(), s.bootstrap, members, "")
	s.Require().NoError(err)

	s.Run("rejects non-bootstrap requesters", func() {
		_, err := s.service.DissolveProvisional(s.ctx(), members[0])
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("dissolves and stamps the time", func() {
		dissolved, err := s.service.DissolveProvisional(s.ctx(), s.bootstrap)
		s.Require().NoError(err)
		s.Equal(authority.StatusDissolved, dissolved.Status)
		s.Require().NotNil(dissolved.DissolvedAt)
		s.Equal(s.now, *dissolved.DissolvedAt)
	})

	s.Run("former members lose the capability", func() {
		ok, err := s.service.IsActiveMember(s.ctx(), members[0])
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("a second dissolution is not found", func() {
		_, err := s.service.DissolveProvisional(s.ctx(), s.bootstrap)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestIsActiveMember() {
	members := s.memberIDs(3)
	_, _, err := s.service.AppointProvisional(s.ctx(), s.bootstrap, members, "")
	s.Require().NoError(err)

	ok, err := s.service.IsActiveMember(s.ctx(), members[2])
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.IsActiveMember(s.ctx(), s.bootstrap)
	s.Require().NoError(err)
	s.False(ok, "the bootstrap principal is not a member unless seated")
}

func (s *ServiceSuite) TestGetActiveWhenNone() {
	auth, members, err := s.service.GetActive(s.ctx())
	s.Require().NoError(err)
	s.Nil(auth)
	s.Nil(members)
}
