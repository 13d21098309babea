package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQueryLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(Options{})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		user := "alice"
		if i%2 == 1 {
			user = "bob"
		}
		_, err := l.Append(map[string]any{"action": "view", "user_id": user, "seq": i})
		require.NoError(t, err)
	}
	return l
}

func TestQuery_ByPayloadField(t *testing.T) {
	l := seedQueryLedger(t)

	got := l.Query(Filter{Payload: map[string]any{"user_id": "bob"}})
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, "bob", e.Payload["user_id"])
	}
}

func TestQuery_NumericEqualitySurvivesReload(t *testing.T) {
	l := seedQueryLedger(t)

	data, err := l.ExportJSON()
	require.NoError(t, err)
	reloaded, err := FromJSON(data, Options{})
	require.NoError(t, err)

	// seq was appended as int and reloads as float64.
	got := reloaded.Query(Filter{Payload: map[string]any{"seq": 4}})
	require.Len(t, got, 1)
}

func TestQuery_PreservesAppendOrder(t *testing.T) {
	l := seedQueryLedger(t)

	got := l.Query(Filter{})
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
	}
}

func TestQuery_LimitAndOffset(t *testing.T) {
	l := seedQueryLedger(t)

	page := l.Query(Filter{Limit: 2, Offset: 3})
	require.Len(t, page, 2)
	assert.EqualValues(t, 3, page[0].Payload["seq"])
	assert.EqualValues(t, 4, page[1].Payload["seq"])
}

func TestQuery_TimeRange(t *testing.T) {
	l := seedQueryLedger(t)
	entries := l.Entries()

	from := entries[2].Timestamp
	got := l.Query(Filter{From: from})
	assert.GreaterOrEqual(t, len(got), 4)

	got = l.Query(Filter{To: time.Now().Add(-time.Hour)})
	assert.Empty(t, got)
}

func TestQuery_MissingFieldNeverMatches(t *testing.T) {
	l := seedQueryLedger(t)
	got := l.Query(Filter{Payload: map[string]any{"absent": "x"}})
	assert.Empty(t, got)
}
