package election

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	id "khural/pkg/domain"
)

// fingerprintTimeLayout is the timestamp format hashed into fingerprints:
// UTC, millisecond precision, trailing Z. The format is part of the public
// verification contract; third parties recompute fingerprints from it.
const fingerprintTimeLayout = "2006-01-02T15:04:05.000Z"

// FingerprintTime formats a timestamp for fingerprint payloads.
func FingerprintTime(t time.Time) string {
	return t.UTC().Format(fingerprintTimeLayout)
}

// TruncateForFingerprint normalizes a timestamp to the precision the
// fingerprint format carries, so a fingerprint recomputed from stored
// fields reproduces the stored value exactly.
func TruncateForFingerprint(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ResultFingerprint derives the certified-result commitment:
//
//	hex(sha256(electionID|winner1:votes1|...|winnerN:votesN|totalVotes|certifiedAt))
//
// The payload covers winners only, not the full candidate list, so its size
// is bounded by the seat count. Field order and the "|" delimiter are
// bit-exact contract; changing either breaks third-party verification.
func ResultFingerprint(electionID id.ElectionID, winners []TallyEntry, totalVotes int, certifiedAt time.Time) string {
	entries := make([]string, 0, len(winners))
	for _, w := range winners {
		entries = append(entries, w.CandidateID.String()+":"+strconv.Itoa(w.Votes))
	}
	payload := strings.Join([]string{
		electionID.String(),
		strings.Join(entries, "|"),
		strconv.Itoa(totalVotes),
		FingerprintTime(certifiedAt),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
