package audit

import (
	"testing"
	"time"
)

func TestComputeHash_Deterministic(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Draft{Action: "config.apply", Actor: "svc-config-authority", ObjectType: "config", ObjectID: "v12", Details: map[string]any{"hash": "abc"}}

	h1, err := computeHash(GenesisHash, ts, "vw-audit", d)
	if err != nil {
		t.Fatalf("computeHash: %v", err)
	}
	h2, err := computeHash(GenesisHash, ts, "vw-audit", d)
	if err != nil {
		t.Fatalf("computeHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestComputeHash_DifferentPrevYieldsDifferentHash(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Draft{Action: "a", Actor: "b", ObjectType: "c", ObjectID: "d"}

	h1, _ := computeHash(GenesisHash, ts, "chain", d)
	h2, _ := computeHash(h1, ts, "chain", d)
	if h1 == h2 {
		t.Fatal("expected different prev_hash to produce a different hash")
	}
}

func TestGenesisHash(t *testing.T) {
	if len(GenesisHash) != 64 {
		t.Fatalf("expected 64 zero chars, got %d", len(GenesisHash))
	}
	for _, c := range GenesisHash {
		if c != '0' {
			t.Fatalf("expected all-zero genesis hash, got %q", GenesisHash)
		}
	}
}

// TestComputeHash_SurvivesMicrosecondTruncation guards the round-trip
// property Store.Append relies on: TIMESTAMPTZ only stores microsecond
// precision, so a hash computed at append time must use a timestamp
// already truncated to that precision, or re-hashing the value read back
// from the database (which has lost its sub-microsecond digits) produces
// a different RFC3339Nano string and a spurious mismatch.
func TestComputeHash_SurvivesMicrosecondTruncation(t *testing.T) {
	raw := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	truncated := raw.Truncate(time.Microsecond)
	if raw.Equal(truncated) {
		t.Fatal("test fixture must have non-zero sub-microsecond digits")
	}

	d := Draft{Action: "config.apply", Actor: "svc-config-authority", ObjectType: "config", ObjectID: "v1"}

	atAppend, err := computeHash(GenesisHash, truncated, "vw-audit", d)
	if err != nil {
		t.Fatalf("computeHash at append: %v", err)
	}

	// Simulate a Postgres round-trip: TIMESTAMPTZ storage caps precision
	// at microseconds, so a value read back never carries more than that.
	readBack := truncated.Truncate(time.Microsecond)
	atVerify, err := computeHash(GenesisHash, readBack, "vw-audit", d)
	if err != nil {
		t.Fatalf("computeHash at verify: %v", err)
	}

	if atAppend != atVerify {
		t.Fatalf("hash changed across a microsecond-precision round-trip: %s vs %s", atAppend, atVerify)
	}
}
