package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// validationDetail is one struct-tag failure, shaped for API clients.
type validationDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// decodeAndValidate decodes r's JSON body into dst and runs dst's
// validator tags, returning a single *apierrors.APIError covering both a
// malformed body and a body that fails validation; both are
// VALIDATION_ERROR and answer 400.
func decodeAndValidate(r *http.Request, dst any) *apierrors.APIError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierrors.ValidationError("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var details []validationDetail
		for _, fe := range err.(validator.ValidationErrors) {
			details = append(details, validationDetail{Field: fe.Field(), Issue: fe.Tag()})
		}
		return apierrors.ValidationError("request body failed validation").WithDetails(details)
	}
	return nil
}

// audit appends d to the Management Service's own audit log. Wrapped so
// every call site shares one error-formatting path.
func (h *Handlers) audit(r *http.Request, d audit.Draft) error {
	_, err := h.auditLog.Append(r.Context(), d)
	return err
}
