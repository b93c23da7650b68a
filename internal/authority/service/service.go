// Package service orchestrates the electoral authority lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"

	"khural/internal/authority"
	authoritymetrics "khural/internal/authority/metrics"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/sentinel"
	"khural/pkg/platform/tx"
	"khural/pkg/requestcontext"
)

// Store is the authority persistence contract.
type Store interface {
	CreateProvisional(ctx context.Context, auth *authority.Authority, members []*authority.Member) error
	FindActiveProvisional(ctx context.Context) (*authority.Authority, []*authority.Member, error)
	FindActive(ctx context.Context) (*authority.Authority, []*authority.Member, error)
	HasActiveMember(ctx context.Context, principalID id.PrincipalID) (bool, error)
	Execute(ctx context.Context, authorityID id.AuthorityID,
		validate func(*authority.Authority) error,
		apply func(*authority.Authority)) (*authority.Authority, error)
}

// Service owns appointment and dissolution of electoral authorities and
// answers the active-member capability check for the rest of the system.
type Service struct {
	store     Store
	bootstrap id.PrincipalID
	runner    tx.Runner
	logger    *slog.Logger
	metrics   *authoritymetrics.Metrics
}

// New wires the authority service. bootstrap is the founding principal,
// the only one allowed to appoint or dissolve the provisional commission.
func New(store Store, bootstrap id.PrincipalID, runner tx.Runner, logger *slog.Logger, metrics *authoritymetrics.Metrics) *Service {
	return &Service{
		store:     store,
		bootstrap: bootstrap,
		runner:    runner,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *Service) requireBootstrap(requesterID id.PrincipalID) error {
	if s.bootstrap.IsNil() || requesterID != s.bootstrap {
		return dErrors.New(dErrors.CodeForbidden, "only the founding principal may manage the provisional commission")
	}
	return nil
}

// AppointProvisional appoints the provisional commission. Idempotent: when
// an ACTIVE provisional authority already exists it is returned unchanged,
// whoever its members are.
func (s *Service) AppointProvisional(
	ctx context.Context,
	requesterID id.PrincipalID,
	memberIDs []id.PrincipalID,
	mandate string,
) (*authority.Authority, []*authority.Member, error) {
	if err := s.requireBootstrap(requesterID); err != nil {
		return nil, nil, err
	}

	auth, members, err := authority.NewProvisional(
		id.NewAuthorityID(), requesterID, memberIDs, mandate, requestcontext.Now(ctx))
	if err != nil {
		return nil, nil, err
	}

	if existing, existingMembers, err := s.store.FindActiveProvisional(ctx); err == nil {
		return existing, existingMembers, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up provisional commission")
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		return s.store.CreateProvisional(txCtx, auth, members)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost an appointment race; the winner's commission is the one.
			existing, existingMembers, findErr := s.store.FindActiveProvisional(ctx)
			if findErr != nil {
				return nil, nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to look up provisional commission")
			}
			return existing, existingMembers, nil
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to appoint provisional commission")
	}

	s.logger.InfoContext(ctx, "provisional commission appointed",
		"authority_id", auth.ID,
		"member_count", len(members),
	)
	s.metrics.IncrementAppointed()
	return auth, members, nil
}

// DissolveProvisional performs the irreversible dissolution of the ACTIVE
// provisional commission.
func (s *Service) DissolveProvisional(ctx context.Context, requesterID id.PrincipalID) (*authority.Authority, error) {
	if err := s.requireBootstrap(requesterID); err != nil {
		return nil, err
	}

	active, _, err := s.store.FindActiveProvisional(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active provisional commission")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up provisional commission")
	}

	now := requestcontext.Now(ctx)
	var dissolved *authority.Authority
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		auth, err := s.store.Execute(txCtx, active.ID,
			func(a *authority.Authority) error { return a.CanDissolve() },
			func(a *authority.Authority) { a.ApplyDissolution(now) },
		)
		if err != nil {
			return err
		}
		dissolved = auth
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active provisional commission")
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to dissolve provisional commission")
	}

	s.logger.InfoContext(ctx, "provisional commission dissolved",
		"authority_id", dissolved.ID,
	)
	s.metrics.IncrementDissolved()
	return dissolved, nil
}

// IsActiveMember reports whether the principal holds a seat on any ACTIVE
// authority. Election creation and certification consume this as their
// capability check.
func (s *Service) IsActiveMember(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	ok, err := s.store.HasActiveMember(ctx, principalID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check commission membership")
	}
	return ok, nil
}

// GetActive returns the single currently active authority with its
// members, or nils when none is active.
func (s *Service) GetActive(ctx context.Context) (*authority.Authority, []*authority.Member, error) {
	auth, members, err := s.store.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up active authority")
	}
	return auth, members, nil
}
