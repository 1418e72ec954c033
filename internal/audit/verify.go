package audit

import (
	"context"
	"fmt"
)

// BrokenLink describes one event whose chain link failed verification.
type BrokenLink struct {
	ID            int64  `json:"id"`
	Reason        string `json:"reason"` // "prev_hash_mismatch" | "hash_mismatch"
	ExpectedPrev  string `json:"expected_prev,omitempty"`
	FoundPrev     string `json:"found_prev,omitempty"`
	ExpectedHash  string `json:"expected,omitempty"`
	FoundHash     string `json:"found,omitempty"`
}

// VerifyResult is the outcome of checking the most recent lastN events.
type VerifyResult struct {
	ChainID  string       `json:"chain_id"`
	Checked  int          `json:"checked"`
	Verified int          `json:"verified"`
	Broken   []BrokenLink `json:"broken"`
}

// Verify recomputes the hash chain across the last lastN events (oldest
// first) and reports any link that doesn't match, exactly as the Python
// reference's /verify does: a prev_hash mismatch breaks the chain at that
// point but verification continues using the broken link's own hash as
// the new expected_prev, so a single corrupted record doesn't cascade into
// every subsequent record being reported broken too.
func (s *Store) Verify(ctx context.Context, lastN int) (VerifyResult, error) {
	if lastN <= 0 {
		lastN = 1000
	}
	if lastN > 200000 {
		lastN = 200000
	}

	rows, err := s.latestDescending(ctx, lastN)
	if err != nil {
		return VerifyResult{}, err
	}
	return verifyChain(s.chainID, rows)
}

// verifyChain is the pure replay algorithm behind Verify, separated out so
// it can be exercised directly against hand-built Event slices without a
// database.
func verifyChain(chainID string, newestFirst []Event) (VerifyResult, error) {
	result := VerifyResult{ChainID: chainID, Checked: len(newestFirst)}
	expectedPrev := GenesisHash

	// newestFirst arrives newest-first; walk oldest-first to replay the chain.
	for i := len(newestFirst) - 1; i >= 0; i-- {
		e := newestFirst[i]

		if e.PrevHash != expectedPrev {
			result.Broken = append(result.Broken, BrokenLink{
				ID: e.ID, Reason: "prev_hash_mismatch",
				ExpectedPrev: expectedPrev, FoundPrev: e.PrevHash,
			})
			expectedPrev = e.Hash
			continue
		}

		calc, err := recomputeHash(expectedPrev, e.Timestamp, e.ChainID, e.Action, e.Actor, e.ObjectType, e.ObjectID, e.Details)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("audit: recompute hash for event %d: %w", e.ID, err)
		}
		if calc != e.Hash {
			result.Broken = append(result.Broken, BrokenLink{
				ID: e.ID, Reason: "hash_mismatch",
				ExpectedHash: calc, FoundHash: e.Hash,
			})
		} else {
			result.Verified++
		}
		expectedPrev = e.Hash
	}

	return result, nil
}

// latestDescending fetches the most recent n events newest-first, without
// the 1000-row cap Query applies for ordinary API pagination (Verify's
// lastN can legitimately run up to 200000 for a full chain audit).
func (s *Store) latestDescending(ctx context.Context, n int) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, chain_id, action, actor, object_type, object_id, details, prev_hash, hash
		 FROM audit_store WHERE chain_id=$1 ORDER BY id DESC LIMIT $2`,
		s.chainID, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query chain tail: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
