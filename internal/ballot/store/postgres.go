package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"khural/internal/ballot"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	txcontext "khural/pkg/platform/tx"
)

// uniqueViolation is the postgres error code raised by the unique
// (election_id, voter_id) constraint.
const uniqueViolation = "23505"

// Postgres persists ballots in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ballot store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Insert appends a ballot. The unique (election_id, voter_id) constraint
// serializes concurrent casts from the same voter: exactly one insert
// commits, the rest surface sentinel.ErrConflict.
func (s *Postgres) Insert(ctx context.Context, b *ballot.Ballot) error {
	const query = `
		INSERT INTO ballots (id, election_id, voter_id, candidate_id, leaf_fingerprint, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.ElectionID),
		uuid.UUID(b.VoterID),
		uuid.UUID(b.CandidateID),
		b.LeafFingerprint,
		b.CastAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

// HasVoted reports whether the voter already holds a ballot in the
// election.
func (s *Postgres) HasVoted(ctx context.Context, electionID id.ElectionID, voterID id.PrincipalID) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM ballots WHERE election_id = $1 AND voter_id = $2
		)
	`
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(electionID),
		uuid.UUID(voterID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ballot existence: %w", err)
	}
	return exists, nil
}

// CountByElection returns the number of ballots in the election,
// independent of the candidacy vote counters.
func (s *Postgres) CountByElection(ctx context.Context, electionID id.ElectionID) (int, error) {
	const query = `SELECT COUNT(*) FROM ballots WHERE election_id = $1`
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(electionID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return count, nil
}
