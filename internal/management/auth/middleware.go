package auth

import (
	"net/http"
	"strings"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
)

// RequireBearer validates the Authorization header with v and attaches the
// resolved operator to the request context. It rejects the request with
// 401 before any handler or role check runs.
func RequireBearer(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(apimw.AuthorizationHeader)
			if header == "" {
				apierrors.Write(w, apierrors.AuthenticationError("missing_authorization"))
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				apierrors.Write(w, apierrors.AuthenticationError("invalid_authorization"))
				return
			}

			user, err := v.Verify(parts[1])
			if err != nil {
				apierrors.Write(w, apierrors.AuthenticationError("jwt_invalid"))
				return
			}

			next.ServeHTTP(w, r.WithContext(apimw.WithUser(r.Context(), user)))
		})
	}
}

// RequireRole rejects the request with 403 unless the operator attached to
// the context (by RequireBearer) satisfies required. An admin role always
// satisfies every check, per apimw.User.HasRole.
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := apimw.UserFromContext(r.Context())
			if user == nil || !user.HasRole(required) {
				apierrors.Write(w, apierrors.AuthorizationError("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
