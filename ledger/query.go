package ledger

import (
	"reflect"
	"time"
)

// Filter selects entries by payload field equality and by time range.
// Zero-value fields are ignored. Results are always in append order, which
// equals chronological order since timestamps are assigned at append time.
type Filter struct {
	// Payload requires every listed key to be present and equal.
	Payload map[string]any
	// From/To bound the entry timestamp (inclusive). Zero means unbounded.
	From time.Time
	To   time.Time
	// Offset skips that many matches; Limit caps the result (0 = no cap).
	Offset int
	Limit  int
}

// Query returns the committed entries matching f, in append order.
func (l *Ledger) Query(f Filter) []*Entry {
	matched := []*Entry{}
	skipped := 0
	for _, e := range l.Entries() {
		if !f.matches(e) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		matched = append(matched, e)
		if f.Limit > 0 && len(matched) >= f.Limit {
			break
		}
	}
	return matched
}

func (f Filter) matches(e *Entry) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	for k, want := range f.Payload {
		got, ok := e.Payload[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares payload values loosely enough to survive a JSON
// reload, where all numbers come back as float64.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
