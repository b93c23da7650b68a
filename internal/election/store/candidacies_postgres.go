package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	txcontext "khural/pkg/platform/tx"
)

// PostgresCandidacies persists candidacies in PostgreSQL.
type PostgresCandidacies struct {
	db *sql.DB
}

// NewPostgresCandidacies constructs a PostgreSQL-backed candidacy store.
func NewPostgresCandidacies(db *sql.DB) *PostgresCandidacies {
	return &PostgresCandidacies{db: db}
}

func (s *PostgresCandidacies) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Upsert registers a candidacy, idempotent per (election, candidate). The
// conflict path refreshes the platform only; vote counts are untouched.
func (s *PostgresCandidacies) Upsert(ctx context.Context, c *election.Candidacy) (*election.Candidacy, error) {
	const query = `
		INSERT INTO candidacies (id, election_id, candidate_id, platform, vote_count, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (election_id, candidate_id)
		DO UPDATE SET platform = CASE WHEN EXCLUDED.platform <> '' THEN EXCLUDED.platform ELSE candidacies.platform END
		RETURNING id, election_id, candidate_id, platform, vote_count, created_at
	`
	stored, err := scanCandidacy(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.ElectionID),
		uuid.UUID(c.CandidateID),
		c.Platform,
		c.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert candidacy: %w", err)
	}
	return stored, nil
}

// CreateMissing registers candidacies for candidates not yet present in
// the election. Returns the number of rows created.
func (s *PostgresCandidacies) CreateMissing(ctx context.Context, electionID id.ElectionID, candidateIDs []id.PrincipalID, now time.Time) (int, error) {
	const query = `
		INSERT INTO candidacies (id, election_id, candidate_id, platform, vote_count, created_at)
		VALUES ($1, $2, $3, '', 0, $4)
		ON CONFLICT (election_id, candidate_id) DO NOTHING
	`
	created := 0
	for _, candidateID := range candidateIDs {
		res, err := s.execer(ctx).ExecContext(ctx, query,
			uuid.New(),
			uuid.UUID(electionID),
			uuid.UUID(candidateID),
			now,
		)
		if err != nil {
			return created, fmt.Errorf("insert discovered candidacy: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("insert discovered candidacy: %w", err)
		}
		created += int(affected)
	}
	return created, nil
}

// ListByElection returns the election's candidacies in tally order: vote
// count descending, ties broken by registration order (first registered
// wins).
func (s *PostgresCandidacies) ListByElection(ctx context.Context, electionID id.ElectionID) ([]*election.Candidacy, error) {
	const query = `
		SELECT id, election_id, candidate_id, platform, vote_count, created_at
		FROM candidacies
		WHERE election_id = $1
		ORDER BY vote_count DESC, created_at ASC, id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(electionID))
	if err != nil {
		return nil, fmt.Errorf("list candidacies: %w", err)
	}
	defer rows.Close()

	var out []*election.Candidacy
	for rows.Next() {
		c, err := scanCandidacy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidacy: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByElectionAndCandidate returns one candidacy or sentinel.ErrNotFound.
func (s *PostgresCandidacies) FindByElectionAndCandidate(ctx context.Context, electionID id.ElectionID, candidateID id.PrincipalID) (*election.Candidacy, error) {
	const query = `
		SELECT id, election_id, candidate_id, platform, vote_count, created_at
		FROM candidacies
		WHERE election_id = $1 AND candidate_id = $2
	`
	c, err := scanCandidacy(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(electionID),
		uuid.UUID(candidateID),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find candidacy: %w", err)
	}
	return c, nil
}

// IncrementVote bumps a candidacy's vote count by one. Callers run it in
// the same transaction as the ballot insert so both commit or neither
// does.
func (s *PostgresCandidacies) IncrementVote(ctx context.Context, candidacyID id.CandidacyID) error {
	const query = `UPDATE candidacies SET vote_count = vote_count + 1 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(candidacyID))
	if err != nil {
		return fmt.Errorf("increment vote count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment vote count: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanCandidacy(row rowScanner) (*election.Candidacy, error) {
	var (
		c                                 election.Candidacy
		candidacyID, electionID, personID uuid.UUID
	)
	err := row.Scan(&candidacyID, &electionID, &personID, &c.Platform, &c.VoteCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.CandidacyID(candidacyID)
	c.ElectionID = id.ElectionID(electionID)
	c.CandidateID = id.PrincipalID(personID)
	return &c, nil
}
