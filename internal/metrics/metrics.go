// Package metrics exposes prometheus collectors for the health surface of
// the audit subsystem: appends, persistence failures, verification runs and
// session activity. Collectors register on the default registry so any
// host process already serving /metrics picks them up.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const metricPrefix = "custodia_"

var (
	// LedgerAppends counts committed entries per logical ledger.
	LedgerAppends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "ledger_appends_total",
		Help: "Entries committed to a ledger",
	}, []string{"ledger"})

	// PersistFailures counts appends whose durable write failed. A non-zero
	// rate means history is at risk on crash.
	PersistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "ledger_persist_failures_total",
		Help: "Ledger appends that failed to reach disk",
	}, []string{"ledger"})

	// VerificationRuns counts verification passes by outcome.
	VerificationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "ledger_verifications_total",
		Help: "Ledger verification passes",
	}, []string{"ledger", "result"})

	// ActiveSessions tracks the current number of active user sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "active_sessions",
		Help: "Currently active user sessions",
	})

	// SuspiciousFindings counts anomaly findings by heuristic type.
	SuspiciousFindings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "suspicious_findings_total",
		Help: "Anomaly findings reported by the session tracker",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(
		LedgerAppends,
		PersistFailures,
		VerificationRuns,
		ActiveSessions,
		SuspiciousFindings,
	)
}
