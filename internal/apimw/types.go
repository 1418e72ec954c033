// Package apimw is the shared HTTP middleware stack used by all three
// services (Configuration Authority, Policy Engine, Management Service).
// Adapted from the teacher's internal/api/middleware package.
package apimw

type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	UserContextKey       contextKey = "user"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"

	APIVersionHeader = "X-API-Version"
)

// User is the authenticated principal attached to the request context by
// the Management Service's auth middleware. The other two services (Policy
// Engine, Configuration Authority) are internal-network-only and don't
// authenticate end users, but share this type so apimw stays one package.
type User struct {
	Subject string
	Roles   []string
}

const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var roleHierarchy = map[string]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// HasRole reports whether user carries required directly or a role that
// dominates it in the viewer < operator < admin hierarchy.
func (u *User) HasRole(required string) bool {
	requiredLevel, ok := roleHierarchy[required]
	if !ok {
		return false
	}
	for _, r := range u.Roles {
		if r == RoleAdmin {
			return true
		}
		if lvl, ok := roleHierarchy[r]; ok && lvl >= requiredLevel {
			return true
		}
	}
	return false
}
