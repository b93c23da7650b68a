package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"khural/internal/election"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	txcontext "khural/pkg/platform/tx"
)

const electionColumns = `
	id, from_rank, to_rank, branch, scope_id, scope_name, title, description,
	nomination_deadline, voting_start, voting_end, seat_count, status,
	created_by, created_at, total_votes, certified_at, result_fingerprint, winner_ids
`

// PostgresElections persists elections in PostgreSQL.
type PostgresElections struct {
	db *sql.DB
}

// NewPostgresElections constructs a PostgreSQL-backed election store.
func NewPostgresElections(db *sql.DB) *PostgresElections {
	return &PostgresElections{db: db}
}

func (s *PostgresElections) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresElections) Create(ctx context.Context, e *election.Election) error {
	const query = `
		INSERT INTO elections (
			id, from_rank, to_rank, branch, scope_id, scope_name, title, description,
			nomination_deadline, voting_start, voting_end, seat_count, status,
			created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		string(e.Rung.From),
		string(e.Rung.To),
		string(e.Rung.Branch),
		uuid.UUID(e.ScopeID),
		e.ScopeName,
		e.Title,
		e.Description,
		e.Window.NominationDeadline,
		e.Window.VotingStart,
		e.Window.VotingEnd,
		e.SeatCount,
		string(e.Status),
		uuid.UUID(e.CreatedBy),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert election: %w", err)
	}
	return nil
}

func (s *PostgresElections) FindByID(ctx context.Context, electionID id.ElectionID) (*election.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = $1`
	return s.queryOne(ctx, query, uuid.UUID(electionID))
}

// FindByIDForUpdate locks the election row for the rest of the enclosing
// transaction. Certification holds this lock while it reads the tally and
// writes the terminal state.
func (s *PostgresElections) FindByIDForUpdate(ctx context.Context, electionID id.ElectionID) (*election.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = $1 FOR UPDATE`
	return s.queryOne(ctx, query, uuid.UUID(electionID))
}

func (s *PostgresElections) queryOne(ctx context.Context, query string, args ...any) (*election.Election, error) {
	e, err := scanElection(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find election: %w", err)
	}
	return e, nil
}

func (s *PostgresElections) List(ctx context.Context, filter election.ListFilter) ([]*election.Election, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != nil {
		conds = append(conds, "status = "+arg(string(*filter.Status)))
	}
	if filter.Branch != nil {
		conds = append(conds, "branch = "+arg(string(*filter.Branch)))
	}
	if filter.FromRank != nil {
		conds = append(conds, "from_rank = "+arg(string(*filter.FromRank)))
	}
	if filter.ToRank != nil {
		conds = append(conds, "to_rank = "+arg(string(*filter.ToRank)))
	}
	if filter.ScopeID != nil {
		conds = append(conds, "scope_id = "+arg(uuid.UUID(*filter.ScopeID)))
	}

	query := `SELECT ` + electionColumns + ` FROM elections`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY voting_start DESC, id"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	var out []*election.Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Execute locks the election row, runs validate, applies the mutation, and
// writes it back. Callers run it inside a transaction so the row lock
// spans check and write.
func (s *PostgresElections) Execute(
	ctx context.Context,
	electionID id.ElectionID,
	validate func(*election.Election) error,
	apply func(*election.Election),
) (*election.Election, error) {
	e, err := s.FindByIDForUpdate(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	apply(e)
	if err := s.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update writes the mutable election fields back.
func (s *PostgresElections) Update(ctx context.Context, e *election.Election) error {
	const query = `
		UPDATE elections
		SET status = $2, total_votes = $3, certified_at = $4,
			result_fingerprint = $5, winner_ids = $6
		WHERE id = $1
	`
	winnerIDs := make([]string, len(e.WinnerIDs))
	for i, w := range e.WinnerIDs {
		winnerIDs[i] = w.String()
	}

	var certifiedAt sql.NullTime
	if e.CertifiedAt != nil {
		certifiedAt = sql.NullTime{Time: *e.CertifiedAt, Valid: true}
	}

	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		string(e.Status),
		e.TotalVotes,
		certifiedAt,
		e.ResultFingerprint,
		pq.Array(winnerIDs),
	)
	if err != nil {
		return fmt.Errorf("update election: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update election: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanElection(row rowScanner) (*election.Election, error) {
	var (
		e                            election.Election
		electionID, scopeID, creator uuid.UUID
		fromRank, toRank, branch     string
		status                       string
		certifiedAt                  sql.NullTime
		fingerprint                  sql.NullString
		winnerIDs                    pq.StringArray
	)
	err := row.Scan(
		&electionID, &fromRank, &toRank, &branch, &scopeID, &e.ScopeName,
		&e.Title, &e.Description,
		&e.Window.NominationDeadline, &e.Window.VotingStart, &e.Window.VotingEnd,
		&e.SeatCount, &status, &creator, &e.CreatedAt,
		&e.TotalVotes, &certifiedAt, &fingerprint, &winnerIDs,
	)
	if err != nil {
		return nil, err
	}
	e.ID = id.ElectionID(electionID)
	e.Rung = election.Rung{
		From:   election.Rank(fromRank),
		To:     election.Rank(toRank),
		Branch: election.Branch(branch),
	}
	e.ScopeID = id.ScopeID(scopeID)
	e.Status = election.Status(status)
	e.CreatedBy = id.PrincipalID(creator)
	if certifiedAt.Valid {
		at := certifiedAt.Time
		e.CertifiedAt = &at
	}
	e.ResultFingerprint = fingerprint.String
	for _, raw := range winnerIDs {
		winner, err := id.ParsePrincipalID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse winner id: %w", err)
		}
		e.WinnerIDs = append(e.WinnerIDs, winner)
	}
	return &e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
