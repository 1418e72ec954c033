// Package token mints and verifies stream-subscribe tokens: short-lived
// HS256 credentials a viewer presents to a stream gateway, signed with a
// secret distinct from the RS256 bearer chain the rest of the Management
// Service authenticates against.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the fixed "typ" claim stamped on every minted token, so a
// stream gateway can reject a bearer-chain token presented by mistake.
const TokenType = "vw-stream"

// Minter issues stream-subscribe tokens bound to a single secret and TTL.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// NewMinter builds a Minter. ttl bounds how long a minted token is valid;
// spec's default is 300s but callers configure it explicitly.
func NewMinter(secret string, ttl time.Duration) *Minter {
	return &Minter{secret: []byte(secret), ttl: ttl}
}

// Claims is a stream-subscribe token's payload.
type Claims struct {
	Subject  string `json:"sub"`
	WallID   int64  `json:"wall_id"`
	SourceID int64  `json:"source_id"`
	TileID   string `json:"tile_id"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Mint signs a stream-subscribe token for subject naming the given tile.
func (m *Minter) Mint(subject string, wallID, sourceID int64, tileID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       subject,
		"wall_id":   wallID,
		"source_id": sourceID,
		"tile_id":   tileID,
		"iat":       now.Unix(),
		"exp":       now.Add(m.ttl).Unix(),
		"typ":       TokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign stream token: %w", err)
	}
	return signed, nil
}

// Verify checks tokenString against m's secret and returns its claims. It
// is used by stream gateways, not by the Management Service itself, but
// lives alongside Mint since the two share the trust domain and secret.
func (m *Minter) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("token: stream token invalid: %w", err)
	}
	if claims.Type != TokenType {
		return nil, fmt.Errorf("token: unexpected claim typ %q", claims.Type)
	}
	return claims, nil
}
