package ballot

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"khural/internal/election"
	id "khural/pkg/domain"
)

// LeafFingerprint derives the per-ballot commitment:
//
//	hex(sha256(electionID|voterID|candidateID|castAt))
//
// Each ballot's fingerprint is verifiable on its own, without the rest of
// the ballot set: a voter can confirm their vote was recorded without
// learning anyone else's choice. Field order and the "|" delimiter are
// bit-exact contract.
func LeafFingerprint(electionID id.ElectionID, voterID, candidateID id.PrincipalID, castAt time.Time) string {
	payload := strings.Join([]string{
		electionID.String(),
		voterID.String(),
		candidateID.String(),
		election.FingerprintTime(castAt),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the fingerprint from the ballot's stored fields and
// compares it with the stored value.
func (b *Ballot) Verify() bool {
	return b.LeafFingerprint == LeafFingerprint(b.ElectionID, b.VoterID, b.CandidateID, b.CastAt)
}
