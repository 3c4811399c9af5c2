package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// UserHeader carries the caller's identity on API requests.
const UserHeader = "X-Casetrack-User"

// ErrUnauthorized indicates a missing identity.
var ErrUnauthorized = errors.New("unauthorized")

type userKey struct{}

// UserFromContext returns the caller's identity from context, if present.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok && user != ""
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// IdentityMiddleware rejects requests without an identity header.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(UserHeader))
		if user == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
