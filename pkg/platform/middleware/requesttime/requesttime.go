// Package requesttime pins one observation of the clock per request.
//
// Phase guards (nomination deadline, voting window, certification cutoff)
// must all see the same "now" within a request, and the same now must be
// the one re-validated inside the write transaction. Middleware observes
// the clock once; everything downstream reads requestcontext.Now.
package requesttime

import (
	"net/http"
	"time"

	"khural/pkg/requestcontext"
)

// Capture stores the arrival time of the request in its context.
func Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
