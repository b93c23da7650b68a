// Package domain defines the typed identifiers shared across the service.
//
// Each entity gets its own UUID-backed type so the compiler rejects
// cross-entity mixups (passing a BallotID where an ElectionID is expected
// does not compile). Parsing happens once, at the trust boundary.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "khural/pkg/domain-errors"
)

type (
	// PrincipalID identifies a citizen, commission member, or the
	// founding principal. Principals live in the external identity
	// directory; this service only carries their IDs.
	PrincipalID uuid.UUID

	// AuthorityID identifies an electoral authority (CIK).
	AuthorityID uuid.UUID

	// MemberID identifies one seat on an electoral authority.
	MemberID uuid.UUID

	// ElectionID identifies one election on the ladder.
	ElectionID uuid.UUID

	// CandidacyID identifies one candidate registration in one election.
	CandidacyID uuid.UUID

	// BallotID identifies a single cast ballot.
	BallotID uuid.UUID

	// ScopeID identifies a geographic/administrative scope in the
	// external hierarchy registry.
	ScopeID uuid.UUID
)

func parse(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", kind))
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be a valid UUID", kind))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must not be the nil UUID", kind))
	}
	return u, nil
}

// ParsePrincipalID parses a principal ID from its string form.
func ParsePrincipalID(raw string) (PrincipalID, error) {
	u, err := parse("principal id", raw)
	return PrincipalID(u), err
}

// ParseAuthorityID parses an authority ID from its string form.
func ParseAuthorityID(raw string) (AuthorityID, error) {
	u, err := parse("authority id", raw)
	return AuthorityID(u), err
}

// ParseElectionID parses an election ID from its string form.
func ParseElectionID(raw string) (ElectionID, error) {
	u, err := parse("election id", raw)
	return ElectionID(u), err
}

// ParseCandidacyID parses a candidacy ID from its string form.
func ParseCandidacyID(raw string) (CandidacyID, error) {
	u, err := parse("candidacy id", raw)
	return CandidacyID(u), err
}

// ParseBallotID parses a ballot ID from its string form.
func ParseBallotID(raw string) (BallotID, error) {
	u, err := parse("ballot id", raw)
	return BallotID(u), err
}

// ParseScopeID parses a scope ID from its string form.
func ParseScopeID(raw string) (ScopeID, error) {
	u, err := parse("scope id", raw)
	return ScopeID(u), err
}

func (id PrincipalID) String() string { return uuid.UUID(id).String() }
func (id AuthorityID) String() string { return uuid.UUID(id).String() }
func (id MemberID) String() string    { return uuid.UUID(id).String() }
func (id ElectionID) String() string  { return uuid.UUID(id).String() }
func (id CandidacyID) String() string { return uuid.UUID(id).String() }
func (id BallotID) String() string    { return uuid.UUID(id).String() }
func (id ScopeID) String() string     { return uuid.UUID(id).String() }

func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuthorityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ElectionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CandidacyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BallotID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ScopeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewPrincipalID returns a fresh random principal ID. Mostly useful in tests.
func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }

// NewAuthorityID returns a fresh random authority ID.
func NewAuthorityID() AuthorityID { return AuthorityID(uuid.New()) }

// NewMemberID returns a fresh random member ID.
func NewMemberID() MemberID { return MemberID(uuid.New()) }

// NewElectionID returns a fresh random election ID.
func NewElectionID() ElectionID { return ElectionID(uuid.New()) }

// NewCandidacyID returns a fresh random candidacy ID.
func NewCandidacyID() CandidacyID { return CandidacyID(uuid.New()) }

// NewBallotID returns a fresh random ballot ID.
func NewBallotID() BallotID { return BallotID(uuid.New()) }

// NewScopeID returns a fresh random scope ID.
func NewScopeID() ScopeID { return ScopeID(uuid.New()) }
