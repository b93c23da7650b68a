// Package ballot is the append-only ballot ledger: one ballot per
// (election, voter), each carrying an independently verifiable fingerprint.
package ballot

import (
	"time"

	id "khural/pkg/domain"
)

// Ballot is one cast vote. Ballots are final: never updated, never
// deleted. CastAt is stored at the precision the fingerprint format
// carries so the fingerprint can be recomputed from stored fields.
type Ballot struct {
	ID              id.BallotID
	ElectionID      id.ElectionID
	VoterID         id.PrincipalID
	CandidateID     id.PrincipalID
	LeafFingerprint string
	CastAt          time.Time
}
