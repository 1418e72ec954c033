// Package audit implements the hash-chained event log: every action any
// service takes against the platform (config apply, reconcile, policy
// decision, bundle import) is appended here as a tamper-evident record.
// Grounded on services/audit/app/main.py's audit_store chain.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/canonicaljson"
)

// GenesisHash is the prev_hash of the first event in a chain: 64 zero
// characters, matching the Python reference's "0"*64.
var GenesisHash = strings.Repeat("0", 64)

// coreFields is the exact field set hashed into each event's chain link.
// Field order doesn't matter for the hash (canonicaljson sorts keys), but
// it must match the Python prototype's core dict exactly: ts, chain_id,
// action, actor, object_type, object_id, details.
type coreFields struct {
	Timestamp  string         `json:"ts"`
	ChainID    string         `json:"chain_id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Details    map[string]any `json:"details"`
}

// Draft is a not-yet-hashed event, supplied by a caller wanting to append
// to the chain.
type Draft struct {
	Action     string
	Actor      string
	ObjectType string
	ObjectID   string
	Details    map[string]any
}

// Event is one persisted, hash-chained audit record.
type Event struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"ts"`
	ChainID    string         `json:"chain_id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Details    map[string]any `json:"details"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
}

// computeHash returns sha256(prevHash + "|" + canonical_json(core)) hex
// encoded — the exact chain-link formula from the Python reference.
func computeHash(prevHash string, ts time.Time, chainID string, d Draft) (string, error) {
	if d.Details == nil {
		d.Details = map[string]any{}
	}
	core := coreFields{
		Timestamp:  ts.UTC().Format(time.RFC3339Nano),
		ChainID:    chainID,
		Action:     d.Action,
		Actor:      d.Actor,
		ObjectType: d.ObjectType,
		ObjectID:   d.ObjectID,
		Details:    d.Details,
	}
	canon, err := canonicaljson.Marshal(core)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prevHash + "|" + string(canon)))
	return hex.EncodeToString(sum[:]), nil
}

// recomputeHash is identical to computeHash but takes an already-persisted
// timestamp and core fields, for use during chain verification.
func recomputeHash(prevHash string, ts time.Time, chainID, action, actor, objectType, objectID string, details map[string]any) (string, error) {
	return computeHash(prevHash, ts, chainID, Draft{
		Action: action, Actor: actor, ObjectType: objectType, ObjectID: objectID, Details: details,
	})
}
