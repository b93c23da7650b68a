package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"khural/internal/election"
	"khural/pkg/requestcontext"
)

// Publisher captures lifecycle events. It writes to the outbox store so
// the event commits or rolls back together with the domain write that
// produced it.
type Publisher struct {
	store Store
}

// NewPublisher builds a publisher over an outbox store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

type electionCreatedPayload struct {
	EventType   string    `json:"event_type"`
	ElectionID  string    `json:"election_id"`
	Title       string    `json:"title"`
	Branch      string    `json:"branch"`
	FromRank    string    `json:"from_rank"`
	ToRank      string    `json:"to_rank"`
	ScopeID     string    `json:"scope_id"`
	ScopeName   string    `json:"scope_name"`
	VotingStart time.Time `json:"voting_start"`
	VotingEnd   time.Time `json:"voting_end"`
}

// ElectionCreated records that an election was created.
func (p *Publisher) ElectionCreated(ctx context.Context, e *election.Election) error {
	payload, err := json.Marshal(electionCreatedPayload{
		EventType:   string(TypeElectionCreated),
		ElectionID:  e.ID.String(),
		Title:       e.Title,
		Branch:      string(e.Rung.Branch),
		FromRank:    string(e.Rung.From),
		ToRank:      string(e.Rung.To),
		ScopeID:     e.ScopeID.String(),
		ScopeName:   e.ScopeName,
		VotingStart: e.Window.VotingStart,
		VotingEnd:   e.Window.VotingEnd,
	})
	if err != nil {
		return fmt.Errorf("marshal election created payload: %w", err)
	}
	return p.append(ctx, TypeElectionCreated, e, payload)
}

type electionCertifiedPayload struct {
	EventType         string    `json:"event_type"`
	ElectionID        string    `json:"election_id"`
	Title             string    `json:"title"`
	Branch            string    `json:"branch"`
	WinnerIDs         []string  `json:"winner_ids"`
	TotalVotes        int       `json:"total_votes"`
	ResultFingerprint string    `json:"result_fingerprint"`
	CertifiedAt       time.Time `json:"certified_at"`
}

// ElectionCertified records that an election's result was certified.
func (p *Publisher) ElectionCertified(ctx context.Context, e *election.Election) error {
	winners := make([]string, len(e.WinnerIDs))
	for i, w := range e.WinnerIDs {
		winners[i] = w.String()
	}
	var certifiedAt time.Time
	if e.CertifiedAt != nil {
		certifiedAt = *e.CertifiedAt
	}

	payload, err := json.Marshal(electionCertifiedPayload{
		EventType:         string(TypeElectionCertified),
		ElectionID:        e.ID.String(),
		Title:             e.Title,
		Branch:            string(e.Rung.Branch),
		WinnerIDs:         winners,
		TotalVotes:        e.TotalVotes,
		ResultFingerprint: e.ResultFingerprint,
		CertifiedAt:       certifiedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal election certified payload: %w", err)
	}
	return p.append(ctx, TypeElectionCertified, e, payload)
}

func (p *Publisher) append(ctx context.Context, eventType Type, e *election.Election, payload []byte) error {
	return p.store.Append(ctx, Event{
		ID:         uuid.New(),
		Type:       eventType,
		ElectionID: e.ID,
		Payload:    payload,
		CreatedAt:  requestcontext.Now(ctx),
	})
}
