package apimw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		existingID string
	}{
		{name: "generates new ID when absent", existingID: ""},
		{name: "preserves inbound ID", existingID: "inbound-id-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id := RequestIDFromContext(r.Context())
				if id == "" {
					t.Error("request ID missing from context")
				}
				if tt.existingID != "" && id != tt.existingID {
					t.Errorf("expected %s, got %s", tt.existingID, id)
				}
				w.WriteHeader(http.StatusOK)
			})

			wrapped := RequestID(handler)
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existingID != "" {
				req.Header.Set(RequestIDHeader, tt.existingID)
			}
			rr := httptest.NewRecorder()
			wrapped.ServeHTTP(rr, req)

			headerID := rr.Header().Get(RequestIDHeader)
			if headerID == "" {
				t.Error("X-Request-ID header not set on response")
			}
			if tt.existingID != "" && headerID != tt.existingID {
				t.Errorf("expected header %s, got %s", tt.existingID, headerID)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	ctx := WithUser(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &User{Subject: "op-1", Roles: []string{RoleOperator}})
	u := UserFromContext(ctx)
	if u == nil || u.Subject != "op-1" {
		t.Fatalf("expected user op-1, got %+v", u)
	}
}
