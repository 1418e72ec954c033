package httpapi

import (
	"net/http"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
)

// WhoAmI handles GET /auth/whoami: echoes the authenticated subject and
// roles extracted from the bearer token, for operator tooling to confirm
// which identity and permissions it's holding.
func (h *Handlers) WhoAmI(w http.ResponseWriter, r *http.Request) {
	u := apimw.UserFromContext(r.Context())
	if u == nil {
		apierrors.Write(w, apierrors.AuthenticationError("no authenticated user in context"))
		return
	}
	writeJSON(w, http.StatusOK, whoAmIResponse{Subject: u.Subject, Roles: u.Roles})
}
