package token

import (
	"testing"
	"time"
)

func TestMintAndVerify_RoundTrip(t *testing.T) {
	m := NewMinter("super-secret", 5*time.Minute)

	signed, err := m.Mint("operator-1", 7, 3, "tile-2")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "operator-1" || claims.WallID != 7 || claims.SourceID != 3 || claims.TileID != "tile-2" {
		t.Errorf("claims = %+v, want sub=operator-1 wall_id=7 source_id=3 tile_id=tile-2", claims)
	}
	if claims.Type != TokenType {
		t.Errorf("typ = %q, want %q", claims.Type, TokenType)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := NewMinter("secret-a", time.Minute)
	signed, err := m.Mint("operator-1", 1, 1, "tile-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	other := NewMinter("secret-b", time.Minute)
	if _, err := other.Verify(signed); err == nil {
		t.Error("expected error verifying with a different secret, got nil")
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m := NewMinter("secret", -time.Second)
	signed, err := m.Mint("operator-1", 1, 1, "tile-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := m.Verify(signed); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}
