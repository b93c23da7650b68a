package election

import (
	dErrors "khural/pkg/domain-errors"
)

// Rank is one of the six ascending administrative scopes of the hierarchy,
// plus the Family base the ladder starts from.
type Rank string

const (
	RankFamily        Rank = "FAMILY"
	RankArban         Rank = "ARBAN"
	RankZun           Rank = "ZUN"
	RankMyangan       Rank = "MYANGAN"
	RankTumen         Rank = "TUMEN"
	RankRepublic      Rank = "REPUBLIC"
	RankConfederation Rank = "CONFEDERATION"
)

// Branch is one of the four branches of power. Each branch runs its own
// separate elections on every rung.
type Branch string

const (
	BranchExecutive   Branch = "EXECUTIVE"
	BranchLegislative Branch = "LEGISLATIVE"
	BranchJudicial    Branch = "JUDICIAL"
	BranchBanking     Branch = "BANKING"
)

// ladder is the ordered rank ladder, index 0 = bottom. Leaders at index i
// elect the rank at index i+1, per branch.
var ladder = []Rank{
	RankFamily,
	RankArban,
	RankZun,
	RankMyangan,
	RankTumen,
	RankRepublic,
	RankConfederation,
}

var rankLabels = map[Rank]string{
	RankFamily:        "Family",
	RankArban:         "Arban",
	RankZun:           "Zun",
	RankMyangan:       "Myangan",
	RankTumen:         "Tumen",
	RankRepublic:      "Republic",
	RankConfederation: "Confederation",
}

var branches = map[Branch]struct{}{
	BranchExecutive:   {},
	BranchLegislative: {},
	BranchJudicial:    {},
	BranchBanking:     {},
}

// Rung is one (fromRank → toRank, branch) election definition: leaders at
// FromRank elect the ToRank authority of the given branch.
type Rung struct {
	From   Rank
	To     Rank
	Branch Branch
}

// LegalRung reports whether the rung is one of the 24 canonical rungs:
// the six adjacent rank pairs crossed with the four branches.
func LegalRung(r Rung) bool {
	if _, ok := branches[r.Branch]; !ok {
		return false
	}
	fromIdx := rankIndex(r.From)
	toIdx := rankIndex(r.To)
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	return toIdx == fromIdx+1
}

// RankLabel returns the display label for a rank, used in auto-generated
// election titles.
func RankLabel(r Rank) string {
	return rankLabels[r]
}

func rankIndex(r Rank) int {
	for i, candidate := range ladder {
		if candidate == r {
			return i
		}
	}
	return -1
}

// ParseRank validates a rank received at the trust boundary.
func ParseRank(raw string) (Rank, error) {
	r := Rank(raw)
	if rankIndex(r) < 0 {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown rank %q", raw)
	}
	return r, nil
}

// ParseBranch validates a branch received at the trust boundary.
func ParseBranch(raw string) (Branch, error) {
	b := Branch(raw)
	if _, ok := branches[b]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown branch %q", raw)
	}
	return b, nil
}
