package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"khural/internal/authority"
	id "khural/pkg/domain"
	"khural/pkg/platform/sentinel"
	txcontext "khural/pkg/platform/tx"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index guaranteeing at most one ACTIVE provisional authority.
const uniqueViolation = "23505"

// Postgres persists authorities in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed authority store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) CreateProvisional(ctx context.Context, auth *authority.Authority, members []*authority.Member) error {
	const insertAuthority = `
		INSERT INTO authorities (id, kind, status, appointed_by, mandate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, insertAuthority,
		uuid.UUID(auth.ID),
		string(auth.Kind),
		string(auth.Status),
		uuid.UUID(auth.AppointedBy),
		auth.Mandate,
		auth.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert authority: %w", err)
	}

	const insertMember = `
		INSERT INTO authority_members (id, authority_id, principal_id, seat_role)
		VALUES ($1, $2, $3, $4)
	`
	for _, m := range members {
		_, err := s.execer(ctx).ExecContext(ctx, insertMember,
			uuid.UUID(m.ID),
			uuid.UUID(m.AuthorityID),
			uuid.UUID(m.PrincipalID),
			string(m.SeatRole),
		)
		if err != nil {
			return fmt.Errorf("insert authority member: %w", err)
		}
	}
	return nil
}

func (s *Postgres) FindActiveProvisional(ctx context.Context) (*authority.Authority, []*authority.Member, error) {
	const query = `
		SELECT id, kind, status, appointed_by, mandate, created_at, dissolved_at
		FROM authorities
		WHERE kind = 'PROVISIONAL' AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query)
}

func (s *Postgres) FindActive(ctx context.Context) (*authority.Authority, []*authority.Member, error) {
	const query = `
		SELECT id, kind, status, appointed_by, mandate, created_at, dissolved_at
		FROM authorities
		WHERE status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query)
}

func (s *Postgres) findOne(ctx context.Context, query string, args ...any) (*authority.Authority, []*authority.Member, error) {
	auth, err := scanAuthority(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, sentinel.ErrNotFound
		}
		return nil, nil, fmt.Errorf("find authority: %w", err)
	}

	members, err := s.membersOf(ctx, auth.ID)
	if err != nil {
		return nil, nil, err
	}
	return auth, members, nil
}

func (s *Postgres) membersOf(ctx context.Context, authorityID id.AuthorityID) ([]*authority.Member, error) {
	const query = `
		SELECT id, authority_id, principal_id, seat_role
		FROM authority_members
		WHERE authority_id = $1
		ORDER BY seat_role = 'CHAIR' DESC, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(authorityID))
	if err != nil {
		return nil, fmt.Errorf("list authority members: %w", err)
	}
	defer rows.Close()

	var members []*authority.Member
	for rows.Next() {
		var (
			m                             authority.Member
			memberID, authID, principalID uuid.UUID
			seatRole                      string
		)
		if err := rows.Scan(&memberID, &authID, &principalID, &seatRole); err != nil {
			return nil, fmt.Errorf("scan authority member: %w", err)
		}
		m.ID = id.MemberID(memberID)
		m.AuthorityID = id.AuthorityID(authID)
		m.PrincipalID = id.PrincipalID(principalID)
		m.SeatRole = authority.SeatRole(seatRole)
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (s *Postgres) HasActiveMember(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM authority_members m
			JOIN authorities a ON a.id = m.authority_id
			WHERE m.principal_id = $1 AND a.status = 'ACTIVE'
		)
	`
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(principalID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active membership: %w", err)
	}
	return exists, nil
}

// Execute locks the authority row, runs validate, applies the mutation,
// and writes it back. Callers run it inside a transaction so the row lock
// spans check and write.
func (s *Postgres) Execute(
	ctx context.Context,
	authorityID id.AuthorityID,
	validate func(*authority.Authority) error,
	apply func(*authority.Authority),
) (*authority.Authority, error) {
	const query = `
		SELECT id, kind, status, appointed_by, mandate, created_at, dissolved_at
		FROM authorities
		WHERE id = $1
		FOR UPDATE
	`
	auth, err := scanAuthority(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(authorityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock authority: %w", err)
	}

	if err := validate(auth); err != nil {
		return nil, err
	}
	apply(auth)

	const update = `
		UPDATE authorities
		SET status = $2, dissolved_at = $3
		WHERE id = $1
	`
	_, err = s.execer(ctx).ExecContext(ctx, update,
		uuid.UUID(auth.ID),
		string(auth.Status),
		auth.DissolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update authority: %w", err)
	}
	return auth, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthority(row rowScanner) (*authority.Authority, error) {
	var (
		auth                  authority.Authority
		authID, appointedBy   uuid.UUID
		kind, status, mandate string
		dissolvedAt           sql.NullTime
	)
	err := row.Scan(&authID, &kind, &status, &appointedBy, &mandate, &auth.CreatedAt, &dissolvedAt)
	if err != nil {
		return nil, err
	}
	auth.ID = id.AuthorityID(authID)
	auth.Kind = authority.Kind(kind)
	auth.Status = authority.Status(status)
	auth.AppointedBy = id.PrincipalID(appointedBy)
	auth.Mandate = mandate
	if dissolvedAt.Valid {
		at := dissolvedAt.Time
		auth.DissolvedAt = &at
	}
	return &auth, nil
}
