// Package handler exposes the electoral commission endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"khural/internal/authority"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/httputil"
	"khural/pkg/requestcontext"
)

// Service defines the commission operations the handler depends on.
type Service interface {
	AppointProvisional(ctx context.Context, requesterID id.PrincipalID, memberIDs []id.PrincipalID, mandate string) (*authority.Authority, []*authority.Member, error)
	DissolveProvisional(ctx context.Context, requesterID id.PrincipalID) (*authority.Authority, error)
	GetActive(ctx context.Context) (*authority.Authority, []*authority.Member, error)
}

// Handler handles commission endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a commission Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the commission routes. requireAuth guards the mutating
// routes; the status route is public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/cik", h.handleGetActive)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/cik/provisional/appoint", h.handleAppoint)
		r.Post("/cik/provisional/dissolve", h.handleDissolve)
	})
}

type appointRequest struct {
	MemberIDs []string `json:"member_ids"`
	Mandate   string   `json:"mandate"`
}

func (req appointRequest) parsedMemberIDs() ([]id.PrincipalID, error) {
	memberIDs := make([]id.PrincipalID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		principalID, err := id.ParsePrincipalID(raw)
		if err != nil {
			return nil, err
		}
		memberIDs = append(memberIDs, principalID)
	}
	return memberIDs, nil
}

type memberResponse struct {
	PrincipalID string `json:"principal_id"`
	SeatRole    string `json:"seat_role"`
}

type authorityResponse struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Status      string           `json:"status"`
	Mandate     string           `json:"mandate"`
	CreatedAt   time.Time        `json:"created_at"`
	DissolvedAt *time.Time       `json:"dissolved_at,omitempty"`
	Members     []memberResponse `json:"members,omitempty"`
}

func toAuthorityResponse(a *authority.Authority, members []*authority.Member) authorityResponse {
	resp := authorityResponse{
		ID:          a.ID.String(),
		Kind:        string(a.Kind),
		Status:      string(a.Status),
		Mandate:     a.Mandate,
		CreatedAt:   a.CreatedAt,
		DissolvedAt: a.DissolvedAt,
	}
	for _, m := range members {
		resp.Members = append(resp.Members, memberResponse{
			PrincipalID: m.PrincipalID.String(),
			SeatRole:    string(m.SeatRole),
		})
	}
	return resp
}

func (h *Handler) handleAppoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[appointRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	memberIDs, err := req.parsedMemberIDs()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	auth, members, err := h.service.AppointProvisional(ctx, requestcontext.PrincipalID(ctx), memberIDs, req.Mandate)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to appoint provisional commission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAuthorityResponse(auth, members))
}

func (h *Handler) handleDissolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	auth, err := h.service.DissolveProvisional(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		h.writeServiceError(w, ctx, "failed to dissolve provisional commission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuthorityResponse(auth, nil))
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	auth, members, err := h.service.GetActive(ctx)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to load active commission", err)
		return
	}
	if auth == nil {
		httputil.WriteJSON(w, http.StatusOK, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuthorityResponse(auth, members))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
