package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemBytes)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifier_StaticPEM_ValidToken(t *testing.T) {
	key, pemStr := generateTestKey(t)
	v, err := NewVerifier(Config{PublicKeyPEM: pemStr, ClientID: "videowall"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tokenString := signToken(t, key, jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]any{
			"roles": []any{"viewer"},
		},
		"resource_access": map[string]any{
			"videowall": map[string]any{
				"roles": []any{"operator"},
			},
		},
	})

	user, err := v.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Subject != "operator-1" {
		t.Errorf("subject = %q, want operator-1", user.Subject)
	}
	if len(user.Roles) != 2 || user.Roles[0] != "operator" || user.Roles[1] != "viewer" {
		t.Errorf("roles = %v, want [operator viewer]", user.Roles)
	}
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	key, pemStr := generateTestKey(t)
	v, err := NewVerifier(Config{PublicKeyPEM: pemStr})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tokenString := signToken(t, key, jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.Verify(tokenString); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestVerifier_RejectsWrongKey(t *testing.T) {
	_, pemStr := generateTestKey(t)
	otherKey, _ := generateTestKey(t)
	v, err := NewVerifier(Config{PublicKeyPEM: pemStr})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tokenString := signToken(t, otherKey, jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(tokenString); err == nil {
		t.Error("expected error for token signed by unrelated key, got nil")
	}
}

func TestVerifier_RejectsMissingSubject(t *testing.T) {
	key, pemStr := generateTestKey(t)
	v, err := NewVerifier(Config{PublicKeyPEM: pemStr})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tokenString := signToken(t, key, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(tokenString); err == nil {
		t.Error("expected error for token missing sub claim, got nil")
	}
}

func TestExtractRoles_DedupesAndSorts(t *testing.T) {
	claims := jwt.MapClaims{
		"realm_access": map[string]any{
			"roles": []any{"viewer", "operator"},
		},
		"resource_access": map[string]any{
			"videowall": map[string]any{
				"roles": []any{"operator", "admin"},
			},
			"other-client": map[string]any{
				"roles": []any{"ignored"},
			},
		},
	}

	roles := extractRoles(claims, "videowall")
	want := []string{"admin", "operator", "viewer"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("roles[%d] = %q, want %q", i, roles[i], want[i])
		}
	}
}

func TestExtractRoles_NoClientIDConfigured(t *testing.T) {
	claims := jwt.MapClaims{
		"realm_access": map[string]any{
			"roles": []any{"viewer"},
		},
		"resource_access": map[string]any{
			"videowall": map[string]any{
				"roles": []any{"admin"},
			},
		},
	}

	roles := extractRoles(claims, "")
	if len(roles) != 1 || roles[0] != "viewer" {
		t.Errorf("roles = %v, want [viewer]", roles)
	}
}
