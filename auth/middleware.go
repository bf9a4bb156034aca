package auth

import (
	"context"
	"net/http"
	"strings"

	"chatlink/domain"
	"chatlink/errors"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware rejects any request without a valid identity before core
// logic runs. The token comes from the Authorization header, or from
// the "token" query parameter for WebSocket upgrades where browsers
// cannot set headers.
func Middleware(tokens Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				http.Error(w, errors.ErrNotAuthenticated.Error(), http.StatusUnauthorized)
				return
			}

			identity, err := tokens.Validate(raw)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

// IdentityFrom extracts the authenticated identity injected by
// Middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
