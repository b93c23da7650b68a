// Package auth resolves bearer tokens to principals.
//
// Session issuance lives in the external identity service; this middleware
// only validates the signed token and places the principal ID in context.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "khural/pkg/domain"
	dErrors "khural/pkg/domain-errors"
	"khural/pkg/platform/httputil"
	"khural/pkg/requestcontext"
)

// Validator checks bearer tokens and extracts the principal they identify.
type Validator interface {
	Principal(token string) (id.PrincipalID, error)
}

// JWTValidator validates HMAC-signed JWTs whose subject is the principal ID.
type JWTValidator struct {
	signingKey []byte
}

// NewJWTValidator builds a validator over a shared signing key.
func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

// Principal parses and verifies the token, returning the subject principal.
func (v *JWTValidator) Principal(token string) (id.PrincipalID, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return id.PrincipalID{}, fmt.Errorf("parse token: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return id.PrincipalID{}, fmt.Errorf("token subject: %w", err)
	}
	return id.ParsePrincipalID(subject)
}

// RequirePrincipal rejects requests without a valid bearer token and stores
// the authenticated principal in the request context.
func RequirePrincipal(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}

			principal, err := validator.Principal(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipalID(ctx, principal)))
		})
	}
}
