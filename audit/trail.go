// Package audit implements the process-wide audit trail: a single
// hash-linked ledger recording every user and system action taken on the
// platform. Recording is deliberately best-effort — a failure to persist an
// audit entry is surfaced through health and metrics but never fails the
// business operation being recorded.
package audit

import (
	"context"

	"github.com/docforensics/custodia/cryptox"
	"github.com/docforensics/custodia/internal/metrics"
	"github.com/docforensics/custodia/ledger"
	"github.com/docforensics/custodia/logging"
)

const metricLedgerName = "audit"

// Event is one auditable action. Action and UserID are required; the rest
// is optional context.
type Event struct {
	Action     string
	UserID     string
	DocumentID string
	Details    map[string]any
	IP         string
	UserAgent  string
}

// Options configures a Trail.
type Options struct {
	// Path of the audit chain file, e.g. <dataDir>/audit_chain.json.
	// Empty keeps the trail in memory only.
	Path   string
	Cipher cryptox.Cipher
	Logger logging.Logger
}

// Trail is the singleton audit ledger wrapper. It owns its ledger
// exclusively; callers interact through Record and the query helpers.
type Trail struct {
	led *ledger.Ledger
	log logging.Logger
}

// New opens the audit trail, loading any previously persisted chain.
func New(opts Options) (*Trail, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	led, err := ledger.New(ledger.Options{Path: opts.Path, Cipher: opts.Cipher, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Trail{led: led, log: log}, nil
}

// Record appends ev to the trail and returns the committed entry id.
// Persistence failures are logged and counted, not returned: the id is
// still valid for the in-memory chain, and the caller's own operation must
// not fail because audit logging did.
func (t *Trail) Record(ctx context.Context, ev Event) string {
	payload := map[string]any{
		"action":  ev.Action,
		"user_id": ev.UserID,
	}
	if ev.DocumentID != "" {
		payload["document_id"] = ev.DocumentID
	}
	if len(ev.Details) > 0 {
		payload["details"] = ev.Details
	}
	if ev.IP != "" {
		payload["ip_address"] = ev.IP
	}
	if ev.UserAgent != "" {
		payload["user_agent"] = ev.UserAgent
	}

	id, err := t.led.Append(payload)
	if err != nil {
		metrics.PersistFailures.WithLabelValues(metricLedgerName).Inc()
		t.log.Error(ctx, "audit record not durable", "action", ev.Action, "user_id", ev.UserID, "error", err)
	}
	if id != "" {
		metrics.LedgerAppends.WithLabelValues(metricLedgerName).Inc()
	}
	return id
}

// Verify re-verifies the whole audit chain.
func (t *Trail) Verify() ledger.Report {
	report := t.led.Verify()
	result := "valid"
	if !report.IsValid {
		result = "invalid"
	}
	metrics.VerificationRuns.WithLabelValues(metricLedgerName, result).Inc()
	return report
}

// Health reports the most recent persistence failure, or nil when the last
// append reached disk.
func (t *Trail) Health() error { return t.led.LastPersistError() }

// Len returns the number of recorded entries.
func (t *Trail) Len() int { return t.led.Len() }

// Ledger exposes the underlying ledger for read-side consumers (exports,
// the verification tool). The ledger must be treated as read-only.
func (t *Trail) Ledger() *ledger.Ledger { return t.led }
