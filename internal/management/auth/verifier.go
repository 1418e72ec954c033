// Package auth verifies RS256 bearer tokens against a JWKS file or a
// pinned public key, and extracts the Keycloak-style role claims the
// rest of the Management Service authorizes against.
package auth

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
)

// Verifier checks bearer tokens and resolves the operator they name.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	clientID string
}

// NewVerifier builds a Verifier from cfg. A configured PublicKeyPEM takes
// precedence over JWKSPath; at least one of the two must be set.
func NewVerifier(cfg Config) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer, audience: cfg.Audience, clientID: cfg.ClientID}

	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parse configured public key: %w", err)
		}
		v.keyfunc = staticKeyfunc(key)
		return v, nil
	}

	if cfg.JWKSPath == "" {
		return nil, fmt.Errorf("auth: neither public_key_pem nor jwks_path configured")
	}
	raw, err := os.ReadFile(cfg.JWKSPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read jwks file: %w", err)
	}
	jwks, err := keyfunc.NewJWKSetJSON(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("auth: parse jwks file: %w", err)
	}
	v.keyfunc = jwks.Keyfunc
	return v, nil
}

func staticKeyfunc(key *rsa.PublicKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		return key, nil
	}
}

// Verify parses and validates tokenString, returning the operator it names.
func (v *Verifier) Verify(tokenString string) (*apimw.User, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, v.keyfunc, parserOpts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("auth: token invalid: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("auth: unexpected claims type")
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, fmt.Errorf("auth: token missing sub claim")
	}

	return &apimw.User{Subject: subject, Roles: extractRoles(claims, v.clientID)}, nil
}

// extractRoles mirrors the Python prototype's _extract_roles: the union of
// realm_access.roles and resource_access.<client_id>.roles, deduplicated
// and sorted for deterministic logging and testing.
func extractRoles(claims jwt.MapClaims, clientID string) []string {
	set := map[string]struct{}{}

	if realm, ok := claims["realm_access"].(map[string]any); ok {
		addRoleStrings(set, realm["roles"])
	}
	if clientID != "" {
		if resource, ok := claims["resource_access"].(map[string]any); ok {
			if client, ok := resource[clientID].(map[string]any); ok {
				addRoleStrings(set, client["roles"])
			}
		}
	}

	roles := make([]string, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

func addRoleStrings(set map[string]struct{}, raw any) {
	list, ok := raw.([]any)
	if !ok {
		return
	}
	for _, r := range list {
		if s, ok := r.(string); ok {
			set[s] = struct{}{}
		}
	}
}
