package ledger

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJSON_RoundTripPreservesVerification(t *testing.T) {
	l := newTestLedger(t)
	appendN(t, l, 5)
	want := l.Verify()

	data, err := l.ExportJSON()
	require.NoError(t, err)

	reloaded, err := FromJSON(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Verify())
	assert.Equal(t, l.Len(), reloaded.Len())
}

func TestExportJSON_RoundTripPreservesTamperEvidence(t *testing.T) {
	l := newTestLedger(t)
	appendN(t, l, 3)
	l.Entries()[1].Payload["seq"] = "forged"
	want := l.Verify()
	require.False(t, want.IsValid)

	data, err := l.ExportJSON()
	require.NoError(t, err)
	reloaded, err := FromJSON(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Verify())
}

func TestExportCSV_OneRowPerEntry(t *testing.T) {
	l := newTestLedger(t)
	appendN(t, l, 4)

	data, err := l.ExportCSV()
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5) // header + 4 entries
	assert.Equal(t, []string{"entry_id", "timestamp", "payload", "content_hash", "previous_hash", "chain_hash"}, records[0])

	entries := l.Entries()
	for i, e := range entries {
		assert.Equal(t, e.ID, records[i+1][0])
		assert.Equal(t, e.ChainHash, records[i+1][5])
	}
}

func TestFromJSON_RejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte("not json"), Options{})
	require.ErrorIs(t, err, ErrUnreadable)
}
