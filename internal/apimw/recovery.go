package apimw

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
)

// Recovery converts a panicking handler into a 500 response instead of
// taking down the whole service, logging the panic value and stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"request_id", RequestIDFromContext(r.Context()),
					)
					apierrors.Write(w, apierrors.InternalError("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
