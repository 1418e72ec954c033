package apimw

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestID adds a unique X-Request-ID to every response, reusing an
// inbound one if the caller already supplied it (so requests can be traced
// across service boundaries).
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request ID stashed by RequestID, or ""
// if none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// UserFromContext returns the authenticated User stashed by the
// management service's auth middleware, or nil if the request is
// unauthenticated.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(UserContextKey).(*User)
	return u
}

// WithUser returns a context carrying u, for middleware that authenticates
// the caller.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}
