// Package http assembles the public HTTP surface of the service.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authorityhandler "khural/internal/authority/handler"
	ballothandler "khural/internal/ballot/handler"
	electionhandler "khural/internal/election/handler"
	"khural/pkg/platform/middleware/auth"
	"khural/pkg/platform/middleware/metadata"
	"khural/pkg/platform/middleware/requesttime"
)

// Deps are the wired handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Authority *authorityhandler.Handler
	Election  *electionhandler.Handler
	Ballot    *ballothandler.Handler
	Validator auth.Validator
	Logger    *slog.Logger
	Health    func(r chi.Router)
}

// NewRouter builds the full route tree. Every request gets a correlation
// ID and a captured request time; mutating routes additionally require an
// authenticated principal.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(requesttime.Capture)

	requireAuth := auth.RequirePrincipal(deps.Validator, deps.Logger)
	deps.Authority.Register(r, requireAuth)
	deps.Election.Register(r, requireAuth)
	deps.Ballot.Register(r, requireAuth)

	if deps.Health != nil {
		deps.Health(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
