package audit

import (
	"time"

	"github.com/docforensics/custodia/ledger"
)

// ByUser returns the entries recorded for one user, oldest first.
func (t *Trail) ByUser(userID string, limit int) []*ledger.Entry {
	return t.led.Query(ledger.Filter{Payload: map[string]any{"user_id": userID}, Limit: limit})
}

// ByDocument returns the entries touching one document, oldest first.
func (t *Trail) ByDocument(documentID string, limit int) []*ledger.Entry {
	return t.led.Query(ledger.Filter{Payload: map[string]any{"document_id": documentID}, Limit: limit})
}

// ByAction returns the entries for one action type, oldest first.
func (t *Trail) ByAction(action string, limit int) []*ledger.Entry {
	return t.led.Query(ledger.Filter{Payload: map[string]any{"action": action}, Limit: limit})
}

// ByTimeRange returns the entries recorded between from and to, inclusive.
func (t *Trail) ByTimeRange(from, to time.Time, limit int) []*ledger.Entry {
	return t.led.Query(ledger.Filter{From: from, To: to, Limit: limit})
}

// Search runs an arbitrary ledger filter against the trail.
func (t *Trail) Search(f ledger.Filter) []*ledger.Entry {
	return t.led.Query(f)
}

// Statistics aggregates the trail for reporting and health checks.
type Statistics struct {
	TotalEntries       int            `json:"total_entries"`
	ActionCounts       map[string]int `json:"action_counts"`
	UserCounts         map[string]int `json:"user_counts"`
	MostFrequentAction string         `json:"most_frequent_action,omitempty"`
	MostFrequentUser   string         `json:"most_frequent_user,omitempty"`
	DistinctDocuments  int            `json:"distinct_documents"`
	Earliest           time.Time      `json:"earliest,omitempty"`
	Latest             time.Time      `json:"latest,omitempty"`
	PersistFailures    int64          `json:"persist_failures"`
	LastPersistError   string         `json:"last_persist_error,omitempty"`
}

// Stats walks the trail once and aggregates counts, frequency leaders,
// time span and the persistence health captured by Record.
func (t *Trail) Stats() Statistics {
	stats := Statistics{
		ActionCounts:    map[string]int{},
		UserCounts:      map[string]int{},
		PersistFailures: t.led.PersistFailures(),
	}
	if err := t.led.LastPersistError(); err != nil {
		stats.LastPersistError = err.Error()
	}

	docs := map[string]struct{}{}
	for _, e := range t.led.Entries() {
		stats.TotalEntries++
		if action, ok := e.Payload["action"].(string); ok {
			stats.ActionCounts[action]++
		}
		if user, ok := e.Payload["user_id"].(string); ok {
			stats.UserCounts[user]++
		}
		if doc, ok := e.Payload["document_id"].(string); ok && doc != "" {
			docs[doc] = struct{}{}
		}
		if stats.Earliest.IsZero() || e.Timestamp.Before(stats.Earliest) {
			stats.Earliest = e.Timestamp
		}
		if e.Timestamp.After(stats.Latest) {
			stats.Latest = e.Timestamp
		}
	}
	stats.DistinctDocuments = len(docs)
	stats.MostFrequentAction = maxKey(stats.ActionCounts)
	stats.MostFrequentUser = maxKey(stats.UserCounts)
	return stats
}

func maxKey(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}
