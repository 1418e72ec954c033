// Package bundle exports and imports point-in-time snapshots of walls,
// sources, and active layouts, HMAC-signed for transport between
// environments. Grounded on services/mgmt-api/app/main.py's
// bundles_export/bundles_import handlers; distinct from cmd/bundlectl's
// offline tar+Ed25519 ring rollout tool.
package bundle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vitaliisemenov/videowall-controlplane/internal/canonicaljson"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

// Ring is the deployment tier an import targets.
type Ring string

const (
	RingDev  Ring = "dev"
	RingTest Ring = "test"
	RingProd Ring = "prod"
)

// ValidRing reports whether r is one of the three recognized rings.
func ValidRing(r Ring) bool {
	switch r {
	case RingDev, RingTest, RingProd:
		return true
	default:
		return false
	}
}

// Export is a snapshot of the Management Service's declarative state.
type Export struct {
	Walls         []domain.Wall   `json:"walls"`
	Sources       []domain.Source `json:"sources"`
	ActiveLayouts []domain.Layout `json:"active_layouts"`
}

// Signer computes and checks HMAC-SHA256 signatures over a bundle payload's
// canonical JSON form, the same scheme the Python prototype's _hmac_hex uses.
type Signer struct {
	secret string
}

// NewSigner builds a Signer. Surrounding whitespace is trimmed from secret.
// With an empty secret Enabled reports false; Sign and Verify do not check
// Enabled and still compute an HMAC keyed with the empty string, so callers
// that skip signing without a secret check Enabled first.
func NewSigner(secret string) *Signer {
	return &Signer{secret: strings.TrimSpace(secret)}
}

// Enabled reports whether a secret is configured.
func (s *Signer) Enabled() bool {
	return s.secret != ""
}

// Sign returns the lowercase hex HMAC-SHA256 of payload's canonical JSON.
func (s *Signer) Sign(payload map[string]any) (string, error) {
	canon, err := canonicaljson.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("bundle: canonicalize payload: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether hmacHex is the correct signature of payload,
// comparing in constant time. Case-insensitive to match the prototype's
// `req.hmac_hex.lower()` normalization.
func (s *Signer) Verify(payload map[string]any, hmacHex string) (bool, error) {
	expected, err := s.Sign(payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(hmacHex))), nil
}

// ImportRequest is a staged bundle import awaiting a separate apply step.
// Import never mutates the database directly — it only audits the staged
// payload, matching the prototype's "staged, not applied" semantics.
type ImportRequest struct {
	Ring    Ring
	Payload map[string]any
	HMACHex string
}
