package canonicaljson

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysAndStripsWhitespace(t *testing.T) {
	in := map[string]any{
		"zebra": 1,
		"apple": map[string]any{"b": 2, "a": 1},
		"tags":  []string{"x", "y"},
	}
	out, err := Marshal(in)
	require.NoError(t, err)
	require.Equal(t, `{"apple":{"a":1,"b":2},"tags":["x","y"],"zebra":1}`, string(out))
}

func TestMarshal_Deterministic(t *testing.T) {
	in1 := map[string]any{"a": 1, "b": 2, "c": []any{1, 2, 3}}
	in2 := map[string]any{"c": []any{1, 2, 3}, "b": 2, "a": 1}

	out1, err := Marshal(in1)
	require.NoError(t, err)
	out2, err := Marshal(in2)
	require.NoError(t, err)
	require.Equal(t, string(out1), string(out2))
}

func TestCanonicalize_FromRawBytes(t *testing.T) {
	raw := []byte(`{ "b" : 2,
  "a": 1 }`)
	out, err := Canonicalize(raw)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestCanonicalize_PreservesNumberFormatting(t *testing.T) {
	// json.Number round-trips through UseNumber so integers don't grow a
	// spurious ".0" the way a float64 decode would produce.
	raw := []byte(`{"count": 64}`)
	out, err := Canonicalize(raw)
	require.NoError(t, err)
	require.Equal(t, `{"count":64}`, string(out))
}

func TestMarshal_HashStability(t *testing.T) {
	doc := map[string]any{"walls": []any{map[string]any{"id": "w1", "type": "tiles"}}}
	out, err := Marshal(doc)
	require.NoError(t, err)
	h1 := sha256.Sum256(out)

	out2, err := Marshal(doc)
	require.NoError(t, err)
	h2 := sha256.Sum256(out2)

	require.Equal(t, hex.EncodeToString(h1[:]), hex.EncodeToString(h2[:]))
}
