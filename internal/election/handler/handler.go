// Package handler exposes the election lifecycle endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"khural/internal/election"
	"khural/internal/election/service"
	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/httputil"
	"khural/pkg/requestcontext"
)

// Service defines the election operations the handler depends on.
type Service interface {
	Create(ctx context.Context, requesterID id.PrincipalID, params service.CreateParams) (*service.Detail, error)
	RegisterCandidacy(ctx context.Context, candidateID id.PrincipalID, electionID id.ElectionID, platform string) (*election.Candidacy, error)
	AdvanceToVoting(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*election.Election, error)
	Cancel(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*election.Election, error)
	Certify(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*service.Certification, error)
	List(ctx context.Context, filter election.ListFilter) ([]*election.Election, error)
	Get(ctx context.Context, electionID id.ElectionID) (*service.Detail, error)
	LadderStatus(ctx context.Context, scopeID id.ScopeID) (*service.LadderStatus, error)
}

// Handler handles election endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an election Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the election routes. Reads are public; every mutation
// requires an authenticated principal.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/cik/elections", h.handleList)
	r.Get("/cik/elections/{electionID}", h.handleGet)
	r.Get("/cik/ladder/{scopeID}", h.handleLadderStatus)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/cik/elections", h.handleCreate)
		r.Post("/cik/elections/{electionID}/advance", h.handleAdvance)
		r.Post("/cik/elections/{electionID}/cancel", h.handleCancel)
		r.Post("/cik/elections/{electionID}/certify", h.handleCertify)
		r.Post("/cik/candidates", h.handleRegisterCandidacy)
	})
}

type createRequest struct {
	FromRank           string    `json:"from_rank"`
	ToRank             string    `json:"to_rank"`
	Branch             string    `json:"branch"`
	ScopeID            string    `json:"scope_id"`
	ScopeName          string    `json:"scope_name"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	NominationDeadline time.Time `json:"nomination_deadline"`
	VotingStart        time.Time `json:"voting_start"`
	VotingEnd          time.Time `json:"voting_end"`
	SeatCount          int       `json:"seat_count"`
}

func (req createRequest) parsed() (service.CreateParams, error) {
	fromRank, err := election.ParseRank(req.FromRank)
	if err != nil {
		return service.CreateParams{}, err
	}
	toRank, err := election.ParseRank(req.ToRank)
	if err != nil {
		return service.CreateParams{}, err
	}
	branch, err := election.ParseBranch(req.Branch)
	if err != nil {
		return service.CreateParams{}, err
	}
	scopeID, err := id.ParseScopeID(req.ScopeID)
	if err != nil {
		return service.CreateParams{}, err
	}
	seatCount := req.SeatCount
	if seatCount == 0 {
		seatCount = 1
	}
	return service.CreateParams{
		Rung:        election.Rung{From: fromRank, To: toRank, Branch: branch},
		ScopeID:     scopeID,
		ScopeName:   req.ScopeName,
		Title:       req.Title,
		Description: req.Description,
		Window: election.Window{
			NominationDeadline: req.NominationDeadline,
			VotingStart:        req.VotingStart,
			VotingEnd:          req.VotingEnd,
		},
		SeatCount: seatCount,
	}, nil
}

type candidacyResponse struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"election_id"`
	CandidateID string    `json:"candidate_id"`
	Platform    string    `json:"platform,omitempty"`
	VoteCount   int       `json:"vote_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCandidacyResponse(c *election.Candidacy) candidacyResponse {
	return candidacyResponse{
		ID:          c.ID.String(),
		ElectionID:  c.ElectionID.String(),
		CandidateID: c.CandidateID.String(),
		Platform:    c.Platform,
		VoteCount:   c.VoteCount,
		CreatedAt:   c.CreatedAt,
	}
}

type electionResponse struct {
	ID                 string     `json:"id"`
	FromRank           string     `json:"from_rank"`
	ToRank             string     `json:"to_rank"`
	Branch             string     `json:"branch"`
	ScopeID            string     `json:"scope_id"`
	ScopeName          string     `json:"scope_name"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Status             string     `json:"status"`
	NominationDeadline time.Time  `json:"nomination_deadline"`
	VotingStart        time.Time  `json:"voting_start"`
	VotingEnd          time.Time  `json:"voting_end"`
	SeatCount          int        `json:"seat_count"`
	CreatedAt          time.Time  `json:"created_at"`
	TotalVotes         int        `json:"total_votes,omitempty"`
	CertifiedAt        *time.Time `json:"certified_at,omitempty"`
	ResultFingerprint  string     `json:"result_fingerprint,omitempty"`
	WinnerIDs          []string   `json:"winner_ids,omitempty"`
}

func toElectionResponse(e *election.Election) electionResponse {
	resp := electionResponse{
		ID:                 e.ID.String(),
		FromRank:           string(e.Rung.From),
		ToRank:             string(e.Rung.To),
		Branch:             string(e.Rung.Branch),
		ScopeID:            e.ScopeID.String(),
		ScopeName:          e.ScopeName,
		Title:              e.Title,
		Description:        e.Description,
		Status:             string(e.Status),
		NominationDeadline: e.Window.NominationDeadline,
		VotingStart:        e.Window.VotingStart,
		VotingEnd:          e.Window.VotingEnd,
		SeatCount:          e.SeatCount,
		CreatedAt:          e.CreatedAt,
		TotalVotes:         e.TotalVotes,
		CertifiedAt:        e.CertifiedAt,
		ResultFingerprint:  e.ResultFingerprint,
	}
	for _, winner := range e.WinnerIDs {
		resp.WinnerIDs = append(resp.WinnerIDs, winner.String())
	}
	return resp
}

type detailResponse struct {
	electionResponse
	Candidacies []candidacyResponse `json:"candidacies"`
	BallotCount int                 `json:"ballot_count"`
}

func toDetailResponse(d *service.Detail) detailResponse {
	resp := detailResponse{
		electionResponse: toElectionResponse(d.Election),
		Candidacies:      make([]candidacyResponse, 0, len(d.Candidacies)),
		BallotCount:      d.BallotCount,
	}
	for _, c := range d.Candidacies {
		resp.Candidacies = append(resp.Candidacies, toCandidacyResponse(c))
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	params, err := req.parsed()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.service.Create(ctx, requestcontext.PrincipalID(ctx), params)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to create election", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDetailResponse(detail))
}

type registerCandidacyRequest struct {
	ElectionID string `json:"election_id"`
	Platform   string `json:"platform"`
}

func (h *Handler) handleRegisterCandidacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerCandidacyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	electionID, err := id.ParseElectionID(req.ElectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	candidacy, err := h.service.RegisterCandidacy(ctx, requestcontext.PrincipalID(ctx), electionID, req.Platform)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to register candidacy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCandidacyResponse(candidacy))
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to open voting", h.service.AdvanceToVoting)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "failed to cancel election", h.service.Cancel)
}

func (h *Handler) handleTransition(
	w http.ResponseWriter,
	r *http.Request,
	msg string,
	op func(ctx context.Context, requesterID id.PrincipalID, electionID id.ElectionID) (*election.Election, error),
) {
	ctx := r.Context()

	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := op(ctx, requestcontext.PrincipalID(ctx), electionID)
	if err != nil {
		h.writeServiceError(w, ctx, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toElectionResponse(e))
}

type tallyEntryResponse struct {
	CandidateID string `json:"candidate_id"`
	Votes       int    `json:"votes"`
}

type certifyResponse struct {
	electionResponse
	Tally []tallyEntryResponse `json:"tally"`
}

func (h *Handler) handleCertify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.Certify(ctx, requestcontext.PrincipalID(ctx), electionID)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to certify election", err)
		return
	}

	resp := certifyResponse{
		electionResponse: toElectionResponse(cert.Election),
		Tally:            make([]tallyEntryResponse, 0, len(cert.Tally)),
	}
	for _, entry := range cert.Tally {
		resp.Tally = append(resp.Tally, tallyEntryResponse{
			CandidateID: entry.CandidateID.String(),
			Votes:       entry.Votes,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := listFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	elections, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to list elections", err)
		return
	}

	resp := make([]electionResponse, 0, len(elections))
	for _, e := range elections {
		resp = append(resp, toElectionResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func listFilterFromQuery(r *http.Request) (election.ListFilter, error) {
	var filter election.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, err := election.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if raw := q.Get("branch"); raw != "" {
		branch, err := election.ParseBranch(raw)
		if err != nil {
			return filter, err
		}
		filter.Branch = &branch
	}
	if raw := q.Get("from_rank"); raw != "" {
		rank, err := election.ParseRank(raw)
		if err != nil {
			return filter, err
		}
		filter.FromRank = &rank
	}
	if raw := q.Get("to_rank"); raw != "" {
		rank, err := election.ParseRank(raw)
		if err != nil {
			return filter, err
		}
		filter.ToRank = &rank
	}
	if raw := q.Get("scope_id"); raw != "" {
		scopeID, err := id.ParseScopeID(raw)
		if err != nil {
			return filter, err
		}
		filter.ScopeID = &scopeID
	}
	return filter, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.Get(ctx, electionID)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to load election", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

type ladderResponse struct {
	Ladder map[string]map[string]electionResponse `json:"ladder"`
	All    []electionResponse                     `json:"elections"`
}

func (h *Handler) handleLadderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scopeID, err := id.ParseScopeID(chi.URLParam(r, "scopeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.LadderStatus(ctx, scopeID)
	if err != nil {
		h.writeServiceError(w, ctx, "failed to load ladder status", err)
		return
	}

	resp := ladderResponse{
		Ladder: make(map[string]map[string]electionResponse, len(status.Ladder)),
		All:    make([]electionResponse, 0, len(status.All)),
	}
	for rung, byBranch := range status.Ladder {
		resp.Ladder[rung] = make(map[string]electionResponse, len(byBranch))
		for branch, e := range byBranch {
			resp.Ladder[rung][string(branch)] = toElectionResponse(e)
		}
	}
	for _, e := range status.All {
		resp.All = append(resp.All, toElectionResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
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
