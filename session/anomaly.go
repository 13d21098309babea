package session

import (
	"context"
	"sort"
	"time"

	"github.com/docforensics/custodia/internal/metrics"
)

// Finding types.
const (
	FindingConcurrentSessions = "multiple_concurrent_sessions"
	FindingRapidActivity      = "rapid_activity_pattern"
	FindingMultipleIPs        = "multiple_ip_addresses"
)

// Severity levels.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Finding is one anomaly reported by DetectSuspicious. Only the fields
// relevant to its Type are populated.
type Finding struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Severity   string    `json:"severity"`
	DetectedAt time.Time `json:"detected_at"`

	SessionCount  int      `json:"session_count,omitempty"`
	SessionID     string   `json:"session_id,omitempty"`
	ActivityCount int      `json:"activity_count,omitempty"`
	Rate          float64  `json:"rate,omitempty"`
	IPCount       int      `json:"ip_count,omitempty"`
	IPs           []string `json:"ips,omitempty"`
}

// DetectSuspicious runs the three heuristics over one user, or over every
// known user when userID is empty. The checks are independent and
// non-exclusive; a user can trigger all of them at once.
//
// Heuristics (thresholds configurable via Thresholds):
//   - more than MaxConcurrentSessions simultaneously active sessions;
//   - a recent session with more than MaxActivities activities at a rate
//     above MaxActivityRate per second;
//   - more than MaxDistinctIPs distinct addresses across the last
//     RecentSessionWindow sessions.
func (t *Tracker) DetectSuspicious(ctx context.Context, userID string) ([]Finding, error) {
	users := []string{userID}
	if userID == "" {
		var err error
		if users, err = t.knownUsers(ctx); err != nil {
			return nil, err
		}
	}

	findings := []Finding{}
	for _, user := range users {
		userFindings, err := t.detectForUser(ctx, user)
		if err != nil {
			return nil, err
		}
		findings = append(findings, userFindings...)
	}
	for _, f := range findings {
		metrics.SuspiciousFindings.WithLabelValues(f.Type).Inc()
	}
	return findings, nil
}

func (t *Tracker) knownUsers(ctx context.Context) ([]string, error) {
	set := map[string]struct{}{}
	stored, err := t.store.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range stored {
		set[u] = struct{}{}
	}
	// Active sessions whose store write failed would otherwise be missed.
	for _, s := range t.ActiveSessions(ctx) {
		set[s.UserID] = struct{}{}
	}

	users := make([]string, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (t *Tracker) detectForUser(ctx context.Context, userID string) ([]Finding, error) {
	now := t.now().UTC()
	findings := []Finding{}

	// Concurrent sessions, from the live active set.
	if n := t.ActiveCount(ctx, userID); n > t.thresholds.MaxConcurrentSessions {
		findings = append(findings, Finding{
			Type:         FindingConcurrentSessions,
			UserID:       userID,
			Severity:     SeverityMedium,
			DetectedAt:   now,
			SessionCount: n,
		})
	}

	recent, err := t.store.Recent(ctx, userID, t.thresholds.RecentSessionWindow)
	if err != nil {
		return nil, err
	}

	// Rapid activity in any recent session.
	for _, s := range recent {
		if s.ActivityCount <= t.thresholds.MaxActivities {
			continue
		}
		secs := s.Duration().Seconds()
		if secs < 1 {
			secs = 1
		}
		rate := float64(s.ActivityCount) / secs
		if rate > t.thresholds.MaxActivityRate {
			findings = append(findings, Finding{
				Type:          FindingRapidActivity,
				UserID:        userID,
				Severity:      SeverityHigh,
				DetectedAt:    now,
				SessionID:     s.ID,
				ActivityCount: s.ActivityCount,
				Rate:          rate,
			})
		}
	}

	// Distinct source addresses across the recent window.
	ipSet := map[string]struct{}{}
	for _, s := range recent {
		if s.IP != "" {
			ipSet[s.IP] = struct{}{}
		}
	}
	if len(ipSet) > t.thresholds.MaxDistinctIPs {
		ips := make([]string, 0, len(ipSet))
		for ip := range ipSet {
			ips = append(ips, ip)
		}
		sort.Strings(ips)
		findings = append(findings, Finding{
			Type:       FindingMultipleIPs,
			UserID:     userID,
			Severity:   SeverityMedium,
			DetectedAt: now,
			IPCount:    len(ipSet),
			IPs:        ips,
		})
	}

	return findings, nil
}
