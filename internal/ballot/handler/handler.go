// Package handler exposes the voting endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"khural/internal/ballot"
	"khural/internal/election"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/httputil"
	"khural/pkg/requestcontext"
)

// Service defines the ballot operations the handler depends on.
type Service interface {
	Cast(ctx context.Context, voterID id.PrincipalID, electionID id.ElectionID, candidateID id.PrincipalID) (*ballot.Ballot, error)
	Tally(ctx context.Context, electionID id.ElectionID) ([]election.TallyEntry, error)
}

// Handler handles voting endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a voting Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the voting routes. The live tally is public; casting
// requires an authenticated principal.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/cik/elections/{electionID}/tally", h.handleTally)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/cik/vote", h.handleCast)
	})
}

type castRequest struct {
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
}

type ballotResponse struct {
	ID              string    `json:"id"`
	ElectionID      string    `json:"election_id"`
	CandidateID     string    `json:"candidate_id"`
	LeafFingerprint string    `json:"leaf_fingerprint"`
	CastAt          time.Time `json:"cast_at"`
}

func (h *Handler) handleCast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[castRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	electionID, err := id.ParseElectionID(req.ElectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	candidateID, err := id.ParsePrincipalID(req.CandidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	b, err := h.service.Cast(ctx, requestcontext.PrincipalID(ctx), electionID, candidateID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to cast ballot",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, ballotResponse{
		ID:              b.ID.String(),
		ElectionID:      b.ElectionID.String(),
		CandidateID:     b.CandidateID.String(),
		LeafFingerprint: b.LeafFingerprint,
		CastAt:          b.CastAt,
	})
}

type tallyEntryResponse struct {
	CandidateID string `json:"candidate_id"`
	Votes       int    `json:"votes"`
}

func (h *Handler) handleTally(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tally, err := h.service.Tally(ctx, electionID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to load tally",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	resp := make([]tallyEntryResponse, 0, len(tally))
	for _, entry := range tally {
		resp = append(resp, tallyEntryResponse{
			CandidateID: entry.CandidateID.String(),
			Votes:       entry.Votes,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
