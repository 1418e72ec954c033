package bundle

import (
	"strings"
	"testing"
)

func TestSigner_SignAndVerifyRoundTrip(t *testing.T) {
	s := NewSigner("top-secret")
	payload := map[string]any{"ring": "prod", "walls": []any{"a", "b"}}

	sig, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := s.Verify(payload, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true for correct signature")
	}
}

func TestSigner_VerifyCaseInsensitive(t *testing.T) {
	s := NewSigner("top-secret")
	payload := map[string]any{"ring": "prod"}

	sig, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := s.Verify(payload, strings.ToUpper(sig))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true for uppercased signature")
	}
}

func TestSigner_RejectsWrongSignature(t *testing.T) {
	s := NewSigner("top-secret")
	ok, err := s.Verify(map[string]any{"ring": "prod"}, "deadbeef")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify = true, want false for wrong signature")
	}
}

func TestSigner_DifferentPayloadDifferentSignature(t *testing.T) {
	s := NewSigner("top-secret")
	a, err := s.Sign(map[string]any{"ring": "dev"})
	if err != nil {
		t.Fatalf("Sign a: %v", err)
	}
	b, err := s.Sign(map[string]any{"ring": "prod"})
	if err != nil {
		t.Fatalf("Sign b: %v", err)
	}
	if a == b {
		t.Error("expected different payloads to yield different signatures")
	}
}

func TestValidRing(t *testing.T) {
	for _, r := range []Ring{RingDev, RingTest, RingProd} {
		if !ValidRing(r) {
			t.Errorf("ValidRing(%q) = false, want true", r)
		}
	}
	if ValidRing("staging") {
		t.Error("ValidRing(\"staging\") = true, want false")
	}
}
