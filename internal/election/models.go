// Package election holds the election ladder, the election state machine
// model, and the certified-result fingerprint derivation.
package election

import (
	"fmt"
	"time"

	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
)

// Status is the election phase. NOMINATION and VOTING are the only
// non-terminal phases; CERTIFIED and CANCELLED accept no further writes.
type Status string

const (
	StatusNomination Status = "NOMINATION"
	StatusVoting     Status = "VOTING"
	StatusCertified  Status = "CERTIFIED"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus validates a status filter received at the trust boundary.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusNomination, StatusVoting, StatusCertified, StatusCancelled:
		return s, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown election status %q", raw)
	}
}

// Window is the election schedule. Invariant:
// NominationDeadline < VotingStart < VotingEnd.
type Window struct {
	NominationDeadline time.Time
	VotingStart        time.Time
	VotingEnd          time.Time
}

func (w Window) validate() error {
	if w.NominationDeadline.IsZero() || w.VotingStart.IsZero() || w.VotingEnd.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "nomination deadline, voting start, and voting end are required")
	}
	if !w.NominationDeadline.Before(w.VotingStart) {
		return dErrors.New(dErrors.CodeInvalidInput, "nomination deadline must be before voting start")
	}
	if !w.VotingStart.Before(w.VotingEnd) {
		return dErrors.New(dErrors.CodeInvalidInput, "voting end must be after voting start")
	}
	return nil
}

// Election is one rung election. Status only moves forward; a terminal
// election is never mutated again.
type Election struct {
	ID          id.ElectionID
	Rung        Rung
	ScopeID     id.ScopeID
	ScopeName   string
	Title       string
	Description string
	Window      Window
	SeatCount   int
	Status      Status
	CreatedBy   id.PrincipalID
	CreatedAt   time.Time

	// Certification record, written exactly once.
	TotalVotes        int
	CertifiedAt       *time.Time
	ResultFingerprint string
	WinnerIDs         []id.PrincipalID
}

// Candidacy is one candidate registration in one election, unique per
// (election, candidate). VoteCount is monotone non-decreasing and only
// mutated in the same transaction as the ballot insert.
type Candidacy struct {
	ID          id.CandidacyID
	ElectionID  id.ElectionID
	CandidateID id.PrincipalID
	Platform    string
	VoteCount   int
	CreatedAt   time.Time
}

// TallyEntry is one line of the ordered tally: vote count descending, ties
// broken by candidacy registration order (first registered wins).
type TallyEntry struct {
	CandidateID id.PrincipalID
	Votes       int
}

// ListFilter narrows election listings. Nil fields match everything.
type ListFilter struct {
	Status   *Status
	Branch   *Branch
	FromRank *Rank
	ToRank   *Rank
	ScopeID  *id.ScopeID
}

// NewElection validates and builds an election in the NOMINATION phase.
func NewElection(
	electionID id.ElectionID,
	createdBy id.PrincipalID,
	rung Rung,
	scopeID id.ScopeID,
	scopeName string,
	title string,
	description string,
	window Window,
	seatCount int,
	now time.Time,
) (*Election, error) {
	if !LegalRung(rung) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"illegal ladder rung: %s -> %s (%s)", rung.From, rung.To, rung.Branch)
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	if seatCount < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "seat count must be at least 1")
	}
	if title == "" {
		title = fmt.Sprintf("%s election: %s branch, candidates from %s",
			RankLabel(rung.To), rung.Branch, RankLabel(rung.From))
	}
	return &Election{
		ID:          electionID,
		Rung:        rung,
		ScopeID:     scopeID,
		ScopeName:   scopeName,
		Title:       title,
		Description: description,
		Window:      window,
		SeatCount:   seatCount,
		Status:      StatusNomination,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// CanRegisterCandidacy reports whether a candidacy may register now.
func (e *Election) CanRegisterCandidacy(now time.Time) error {
	if e.Status != StatusNomination {
		return dErrors.New(dErrors.CodeInvalidState, "nominations are closed")
	}
	if now.After(e.Window.NominationDeadline) {
		return dErrors.New(dErrors.CodeInvalidState, "nomination deadline has passed")
	}
	return nil
}

// CanAdvanceToVoting reports whether the commission may open voting now.
// Opening voting is an explicit commission action, legal only once the
// scheduled voting window has started.
func (e *Election) CanAdvanceToVoting(now time.Time) error {
	if e.Status != StatusNomination {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot open voting from %s", e.Status)
	}
	if now.Before(e.Window.VotingStart) {
		return dErrors.New(dErrors.CodeInvalidState, "voting window has not started yet")
	}
	return nil
}

// ApplyAdvanceToVoting transitions the election into the VOTING phase.
func (e *Election) ApplyAdvanceToVoting() {
	e.Status = StatusVoting
}

// CanCancel reports whether the election may be cancelled. Only the
// non-terminal phases may be cancelled.
func (e *Election) CanCancel() error {
	if e.Status != StatusNomination && e.Status != StatusVoting {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot cancel a %s election", e.Status)
	}
	return nil
}

// ApplyCancellation transitions the election into the terminal CANCELLED
// phase.
func (e *Election) ApplyCancellation() {
	e.Status = StatusCancelled
}

// CanCast reports whether a ballot may be cast now. The same check runs
// again inside the insert transaction so no ballot lands after a concurrent
// certification observed the window close.
func (e *Election) CanCast(now time.Time) error {
	if e.Status != StatusVoting {
		return dErrors.New(dErrors.CodeInvalidState, "election is not in the voting phase")
	}
	if now.Before(e.Window.VotingStart) || now.After(e.Window.VotingEnd) {
		return dErrors.New(dErrors.CodeOutsideWindow, "outside the voting window")
	}
	return nil
}

// CanCertify reports whether the result may be certified now.
// Certification is write-once: a CERTIFIED election rejects re-invocation
// instead of recomputing.
func (e *Election) CanCertify(now time.Time) error {
	if e.Status == StatusCertified {
		return dErrors.New(dErrors.CodeAlreadyCertified, "election result is already certified")
	}
	if e.Status != StatusVoting {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot certify a %s election", e.Status)
	}
	if now.Before(e.Window.VotingEnd) {
		return dErrors.New(dErrors.CodeInvalidState, "voting period has not ended yet")
	}
	return nil
}

// CertificationRecord is the frozen result written at certification time.
type CertificationRecord struct {
	TotalVotes        int
	WinnerIDs         []id.PrincipalID
	ResultFingerprint string
	CertifiedAt       time.Time
}

// ApplyCertification writes the terminal certified state.
func (e *Election) ApplyCertification(rec CertificationRecord) {
	e.Status = StatusCertified
	e.TotalVotes = rec.TotalVotes
	e.WinnerIDs = rec.WinnerIDs
	e.ResultFingerprint = rec.ResultFingerprint
	certifiedAt := rec.CertifiedAt
	e.CertifiedAt = &certifiedAt
}

// Clone returns a deep copy so memory stores never hand out aliased state.
func (e *Election) Clone() *Election {
	cp := *e
	if e.CertifiedAt != nil {
		at := *e.CertifiedAt
		cp.CertifiedAt = &at
	}
	cp.WinnerIDs = append([]id.PrincipalID(nil), e.WinnerIDs...)
	return &cp
}
