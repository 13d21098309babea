package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": true, "x": "v"}}
	b := map[string]any{"c": map[string]any{"x": "v", "y": true}, "a": 1, "b": 2}

	ca, err := CanonicalJSON(a)
	require.NoError(t, err)
	cb, err := CanonicalJSON(b)
	require.NoError(t, err)

	assert.Equal(t, ca, cb)
}

func TestCanonicalJSON_DistinguishesValues(t *testing.T) {
	ca, err := CanonicalJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	cb, err := CanonicalJSON(map[string]any{"a": 2})
	require.NoError(t, err)

	assert.NotEqual(t, ca, cb)
}

func TestCanonicalJSON_StableAcrossJSONReload(t *testing.T) {
	// After a reload all numbers come back as float64; the canonical form
	// must not change, or every reloaded ledger would verify as tampered.
	before := map[string]any{"count": 42, "ratio": 0.5, "ok": true, "tags": []any{"x", "y"}}
	after := map[string]any{"count": float64(42), "ratio": 0.5, "ok": true, "tags": []any{"x", "y"}}

	cb, err := CanonicalJSON(before)
	require.NoError(t, err)
	ca, err := CanonicalJSON(after)
	require.NoError(t, err)

	assert.Equal(t, cb, ca)
}

func TestCanonicalJSON_NoHTMLEscaping(t *testing.T) {
	c, err := CanonicalJSON(map[string]any{"q": "a<b>&c"})
	require.NoError(t, err)
	assert.Contains(t, string(c), "a<b>&c")
}
