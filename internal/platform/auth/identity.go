// Package auth resolves the caller identity for progress requests.
//
// Identity is a caller-supplied opaque user id. Clients either send it
// directly in the X-User-Id header, or, when the service is configured with
// JWT_SECRET, present a bearer token whose subject wins over the header.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/watch-progress/internal/platform/api"
)

// UserIDHeader carries the caller-supplied identifier.
const UserIDHeader = "X-User-Id"

type ctxKeyUserID struct{}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

// RequireUser resolves the caller identity and injects it into the request
// context. A nil verifier disables the bearer path entirely; with a verifier
// configured, an invalid bearer token is rejected rather than falling back
// to the header.
func RequireUser(verifier *JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := resolveUserID(r, verifier)
			if !ok {
				api.Unauthorized(w, "AUTH_MISSING", "user identity is required", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func resolveUserID(r *http.Request, verifier *JWTVerifier) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" && verifier != nil {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
		if err != nil || strings.TrimSpace(claims.Subject) == "" {
			return "", false
		}
		return claims.Subject, true
	}

	uid := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if uid == "" {
		return "", false
	}
	return uid, true
}
