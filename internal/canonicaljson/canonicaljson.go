// Package canonicaljson produces a deterministic JSON encoding used anywhere
// two components need to agree on a hash over structured data: config
// snapshots in internal/configauthority and event bodies in internal/audit.
//
// The encoding is: object keys sorted lexicographically, no insignificant
// whitespace, and the standard library's lowercase null/true/false literals.
// encoding/json already sorts map[string]any keys when marshaling, so
// round-tripping through map[string]any and re-marshaling with no indent
// gives us canonical form without a third-party canonicalizer.
package canonicaljson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal returns the canonical JSON encoding of v.
//
// v is first marshaled normally, then decoded into a generic map/slice/scalar
// tree and re-marshaled. The second pass is what guarantees sorted keys
// regardless of v's original field order or whether v was itself a
// map[string]any with out-of-order insertion.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: marshal: %w", err)
	}
	return Canonicalize(raw)
}

// Canonicalize re-encodes an already-serialized JSON document into canonical
// form. Useful when the input arrived as raw bytes (a YAML-derived document
// converted to JSON, or a request body) rather than a Go value.
func Canonicalize(raw []byte) ([]byte, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicaljson: decode: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonicaljson: encode: %w", err)
	}
	// json.Encoder.Encode appends a trailing newline; strip it so hashing is
	// over exactly the document bytes.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MustMarshal is Marshal but panics on error. Suitable for call sites that
// hash a value constructed in-process and can never fail to marshal,
// keeping error-handling noise out of paths json.Marshal cannot
// realistically fail for. The audit chain does not use it: computeHash
// calls Marshal and returns its error.
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
