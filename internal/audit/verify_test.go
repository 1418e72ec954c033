package audit

import (
	"testing"
	"time"
)

func buildChain(t *testing.T, chainID string, drafts []Draft) []Event {
	t.Helper()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := GenesisHash
	var events []Event
	for i, d := range drafts {
		eventTS := ts.Add(time.Duration(i) * time.Minute)
		h, err := computeHash(prev, eventTS, chainID, d)
		if err != nil {
			t.Fatalf("computeHash: %v", err)
		}
		events = append(events, Event{
			ID: int64(i + 1), Timestamp: eventTS, ChainID: chainID,
			Action: d.Action, Actor: d.Actor, ObjectType: d.ObjectType, ObjectID: d.ObjectID,
			Details: d.Details, PrevHash: prev, Hash: h,
		})
		prev = h
	}
	// caller expects newest-first, matching what the DB query returns
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events
}

func TestVerifyChain_IntactChain(t *testing.T) {
	drafts := []Draft{
		{Action: "config.apply", Actor: "a", ObjectType: "config", ObjectID: "1"},
		{Action: "reconcile.update", Actor: "b", ObjectType: "wall", ObjectID: "2"},
		{Action: "policy.deny", Actor: "c", ObjectType: "source", ObjectID: "3"},
	}
	events := buildChain(t, "vw-audit", drafts)

	result, err := verifyChain("vw-audit", events)
	if err != nil {
		t.Fatalf("verifyChain: %v", err)
	}
	if result.Checked != 3 || result.Verified != 3 || len(result.Broken) != 0 {
		t.Fatalf("expected fully intact chain, got %+v", result)
	}
}

func TestVerifyChain_DetectsHashTamper(t *testing.T) {
	drafts := []Draft{
		{Action: "config.apply", Actor: "a", ObjectType: "config", ObjectID: "1"},
		{Action: "reconcile.update", Actor: "b", ObjectType: "wall", ObjectID: "2"},
	}
	events := buildChain(t, "vw-audit", drafts)

	// tamper with the details of the oldest event (index len-1, since slice is newest-first)
	events[len(events)-1].Details = map[string]any{"tampered": true}

	result, err := verifyChain("vw-audit", events)
	if err != nil {
		t.Fatalf("verifyChain: %v", err)
	}
	if len(result.Broken) != 1 || result.Broken[0].Reason != "hash_mismatch" {
		t.Fatalf("expected one hash_mismatch, got %+v", result.Broken)
	}
}

func TestVerifyChain_DetectsBrokenPrevLink(t *testing.T) {
	drafts := []Draft{
		{Action: "config.apply", Actor: "a", ObjectType: "config", ObjectID: "1"},
		{Action: "reconcile.update", Actor: "b", ObjectType: "wall", ObjectID: "2"},
		{Action: "policy.deny", Actor: "c", ObjectType: "source", ObjectID: "3"},
	}
	events := buildChain(t, "vw-audit", drafts)

	// snap the link: point event 2's prev_hash somewhere bogus
	events[1].PrevHash = "deadbeef"

	result, err := verifyChain("vw-audit", events)
	if err != nil {
		t.Fatalf("verifyChain: %v", err)
	}
	if len(result.Broken) == 0 {
		t.Fatal("expected at least one broken link")
	}
	found := false
	for _, b := range result.Broken {
		if b.Reason == "prev_hash_mismatch" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a prev_hash_mismatch, got %+v", result.Broken)
	}
}

func TestVerifyChain_EmptyChain(t *testing.T) {
	result, err := verifyChain("vw-audit", nil)
	if err != nil {
		t.Fatalf("verifyChain: %v", err)
	}
	if result.Checked != 0 || result.Verified != 0 || len(result.Broken) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
