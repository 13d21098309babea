// Package session tracks user sessions and their activity, forwards every
// lifecycle event to the audit trail, and runs heuristic anomaly detection
// over session statistics. Active sessions live in memory; the full session
// history is kept in a local SQLite file so anomaly queries and reporting
// survive restarts.
package session

import "time"

// Activity is one action taken within a session.
type Activity struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	DocumentID string         `json:"document_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Session is the lifecycle record of one user session.
//
// State machine: Active --TrackActivity--> Active,
// Active --EndSession--> ended (terminal),
// Active --idle past the timeout--> ended (terminal, detected lazily).
type Session struct {
	ID            string     `json:"session_id"`
	UserID        string     `json:"user_id"`
	IP            string     `json:"ip_address,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	LastActivity  time.Time  `json:"last_activity"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	IsActive      bool       `json:"is_active"`
	ActivityCount int        `json:"activity_count"`
	Activities    []Activity `json:"activities,omitempty"`
}

// Duration is the session's length: until EndTime for ended sessions, until
// the last activity for active ones.
func (s *Session) Duration() time.Duration {
	end := s.LastActivity
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(s.StartTime)
}

// clone returns a deep copy so callers can hold the snapshot without racing
// with the tracker.
func (s *Session) clone() *Session {
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Activities = make([]Activity, len(s.Activities))
	copy(out.Activities, s.Activities)
	return &out
}

// Thresholds configures the anomaly heuristics. Zero values fall back to
// the defaults.
type Thresholds struct {
	// MaxConcurrentSessions: more simultaneously active sessions than this
	// for one user triggers multiple_concurrent_sessions. Default 3.
	MaxConcurrentSessions int
	// MaxActivities and MaxActivityRate together trigger
	// rapid_activity_pattern when one of the user's recent sessions exceeds
	// both the count and the activities-per-second rate. Defaults 100 and 2.
	MaxActivities   int
	MaxActivityRate float64
	// MaxDistinctIPs: more distinct IPs than this across the user's last
	// RecentSessionWindow sessions triggers multiple_ip_addresses.
	// Defaults 5 and 10.
	MaxDistinctIPs      int
	RecentSessionWindow int
}

// DefaultThresholds mirror the platform defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxConcurrentSessions: 3,
		MaxActivities:         100,
		MaxActivityRate:       2.0,
		MaxDistinctIPs:        5,
		RecentSessionWindow:   10,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.MaxConcurrentSessions <= 0 {
		t.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if t.MaxActivities <= 0 {
		t.MaxActivities = def.MaxActivities
	}
	if t.MaxActivityRate <= 0 {
		t.MaxActivityRate = def.MaxActivityRate
	}
	if t.MaxDistinctIPs <= 0 {
		t.MaxDistinctIPs = def.MaxDistinctIPs
	}
	if t.RecentSessionWindow <= 0 {
		t.RecentSessionWindow = def.RecentSessionWindow
	}
	return t
}

// DefaultTimeout is how long a session may stay idle before it is treated
// as ended.
const DefaultTimeout = 30 * time.Minute
