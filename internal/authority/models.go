// Package authority owns the electoral commission (CIK) meta-lifecycle:
// provisional appointment, dissolution, and the active-member capability
// consumed by election creation and certification.
package authority

import (
	"time"

	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
)

// Kind distinguishes the bootstrap commission from the permanent one that
// replaces it after the first full ladder of elections.
type Kind string

const (
	KindProvisional Kind = "PROVISIONAL"
	KindPermanent   Kind = "PERMANENT"
)

// Status of an authority. Dissolution is monotone: ACTIVE moves to
// DISSOLVED and never back. Authorities are never deleted; the row is the
// audit trail.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusDissolved Status = "DISSOLVED"
)

// SeatRole is a member's role on the commission. Exactly one CHAIR exists
// per authority, assigned at appointment time.
type SeatRole string

const (
	SeatChair  SeatRole = "CHAIR"
	SeatMember SeatRole = "MEMBER"
)

// DefaultProvisionalMandate is used when the founding principal appoints
// the provisional commission without an explicit mandate.
const DefaultProvisionalMandate = "Run elections across the full hierarchy ladder and stand down after the Khural convenes"

// Authority is one electoral commission.
type Authority struct {
	ID          id.AuthorityID
	Kind        Kind
	Status      Status
	AppointedBy id.PrincipalID
	Mandate     string
	CreatedAt   time.Time
	DissolvedAt *time.Time
}

// Member is one seat on an authority. Membership is immutable once the
// authority is dissolved.
type Member struct {
	ID          id.MemberID
	AuthorityID id.AuthorityID
	PrincipalID id.PrincipalID
	SeatRole    SeatRole
}

// MinMembers and MaxMembers bound the provisional commission size.
const (
	MinMembers = 3
	MaxMembers = 7
)

// NewProvisional validates and builds a provisional authority with its
// members. The first principal in the list takes the CHAIR seat.
func NewProvisional(
	authorityID id.AuthorityID,
	appointedBy id.PrincipalID,
	memberIDs []id.PrincipalID,
	mandate string,
	now time.Time,
) (*Authority, []*Member, error) {
	if len(memberIDs) < MinMembers || len(memberIDs) > MaxMembers {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"provisional commission requires %d to %d members", MinMembers, MaxMembers)
	}
	seen := make(map[id.PrincipalID]struct{}, len(memberIDs))
	for _, principal := range memberIDs {
		if principal.IsNil() {
			return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "member ids must not be empty")
		}
		if _, dup := seen[principal]; dup {
			return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "member ids must be distinct")
		}
		seen[principal] = struct{}{}
	}
	if mandate == "" {
		mandate = DefaultProvisionalMandate
	}

	auth := &Authority{
		ID:          authorityID,
		Kind:        KindProvisional,
		Status:      StatusActive,
		AppointedBy: appointedBy,
		Mandate:     mandate,
		CreatedAt:   now,
	}

	members := make([]*Member, 0, len(memberIDs))
	for i, principal := range memberIDs {
		role := SeatMember
		if i == 0 {
			role = SeatChair
		}
		members = append(members, &Member{
			ID:          id.NewMemberID(),
			AuthorityID: authorityID,
			PrincipalID: principal,
			SeatRole:    role,
		})
	}
	return auth, members, nil
}

// CanDissolve reports whether the authority may be dissolved.
func (a *Authority) CanDissolve() error {
	if a.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "authority is already dissolved")
	}
	return nil
}

// ApplyDissolution performs the irreversible ACTIVE -> DISSOLVED move.
func (a *Authority) ApplyDissolution(now time.Time) {
	a.Status = StatusDissolved
	dissolvedAt := now
	a.DissolvedAt = &dissolvedAt
}

// Clone returns a deep copy so memory stores never hand out aliased state.
func (a *Authority) Clone() *Authority {
	cp := *a
	if a.DissolvedAt != nil {
		at := *a.DissolvedAt
		cp.DissolvedAt = &at
	}
	return &cp
}
