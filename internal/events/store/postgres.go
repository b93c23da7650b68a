package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"khural/internal/events"
	id "khural/pkg/domain"
	txcontext "khural/pkg/platform/tx"
)

// Postgres implements the outbox over PostgreSQL. Append runs in the
// caller's transaction so the event commits together with the domain
// write; the worker drains committed rows outside any domain transaction.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, event events.Event) error {
	const query = `
		INSERT INTO event_outbox (id, event_type, election_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		uuid.UUID(event.ElectionID),
		[]byte(event.Payload),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *Postgres) Pending(ctx context.Context, limit int) ([]events.Event, error) {
	const query = `
		SELECT id, event_type, election_id, payload, created_at
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e          events.Event
			eventType  string
			electionID uuid.UUID
		)
		if err := rows.Scan(&e.ID, &eventType, &electionID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Type = events.Type(eventType)
		e.ElectionID = id.ElectionID(electionID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkPublished(ctx context.Context, eventIDs []uuid.UUID, at time.Time) error {
	if len(eventIDs) == 0 {
		return nil
	}
	const query = `
		UPDATE event_outbox
		SET published_at = $2
		WHERE id = ANY($1) AND published_at IS NULL
	`
	ids := make([]string, len(eventIDs))
	for i, eventID := range eventIDs {
		ids[i] = eventID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, query, pq.Array(ids), at)
	if err != nil {
		return fmt.Errorf("mark outbox events published: %w", err)
	}
	return nil
}
