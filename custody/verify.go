package custody

import (
	"fmt"
	"sort"

	"github.com/docforensics/custodia/internal/metrics"
	"github.com/docforensics/custodia/ledger"
)

// IssueType classifies domain-level custody anomalies. These are distinct
// from cryptographic tampering: the ledger itself may verify cleanly while
// the recorded handoffs still show a gap.
type IssueType string

const (
	// IssueHashContinuity: the document hash after one handoff does not
	// match the hash before the next one — an undocumented modification.
	IssueHashContinuity IssueType = "hash_continuity_break"
	// IssueTimestampOrder: an entry's timestamp precedes its predecessor's.
	IssueTimestampOrder IssueType = "timestamp_order"
)

// Issue describes one domain anomaly in a custody chain.
type Issue struct {
	Index       int       `json:"index"`
	EntryID     string    `json:"entry_id"`
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	Expected    string    `json:"expected,omitempty"`
	Actual      string    `json:"actual,omitempty"`
}

// Report combines the generic ledger verification with the custody-specific
// continuity checks.
type Report struct {
	ledger.Report
	Issues []Issue `json:"issues"`
}

// Verify runs the cryptographic chain verification for the document plus
// two custody checks: document-hash continuity across consecutive handoffs
// (when both sides recorded a hash) and non-decreasing timestamps.
func (r *Registry) Verify(documentID string) (Report, error) {
	led, err := r.lookup(documentID)
	if err != nil {
		return Report{}, err
	}

	report := Report{Report: led.Verify(), Issues: []Issue{}}
	entries := led.Entries()
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]

		after, aok := prev.Payload["hash_after"].(string)
		before, bok := cur.Payload["hash_before"].(string)
		if aok && bok && after != before {
			report.Issues = append(report.Issues, Issue{
				Index:       i,
				EntryID:     cur.ID,
				Type:        IssueHashContinuity,
				Description: fmt.Sprintf("document hash chain broken at entry %d: previous hash_after does not match hash_before", i),
				Expected:    after,
				Actual:      before,
			})
		}

		if cur.Timestamp.Before(prev.Timestamp) {
			report.Issues = append(report.Issues, Issue{
				Index:       i,
				EntryID:     cur.ID,
				Type:        IssueTimestampOrder,
				Description: fmt.Sprintf("entry %d is timestamped before entry %d", i, i-1),
				Expected:    prev.Timestamp.UTC().String(),
				Actual:      cur.Timestamp.UTC().String(),
			})
		}
	}

	result := "valid"
	if !report.IsValid || len(report.Issues) > 0 {
		result = "invalid"
	}
	metrics.VerificationRuns.WithLabelValues(metricLedgerName, result).Inc()
	return report, nil
}

// Search scans every document's chain with the given filter and returns the
// matches across all chains ordered by timestamp.
func (r *Registry) Search(f ledger.Filter) []*ledger.Entry {
	r.mu.Lock()
	ledgers := make([]*ledger.Ledger, 0, len(r.ledgers))
	for _, led := range r.ledgers {
		ledgers = append(ledgers, led)
	}
	r.mu.Unlock()

	// Limit/offset apply to the merged result, not per chain.
	perChain := f
	perChain.Limit = 0
	perChain.Offset = 0

	matched := []*ledger.Entry{}
	for _, led := range ledgers {
		matched = append(matched, led.Query(perChain)...)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*ledger.Entry{}
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}
