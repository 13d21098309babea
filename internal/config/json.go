package config

import (
	"encoding/json"
	"os"
	"time"

	custodia "github.com/docforensics/custodia"
	"github.com/docforensics/custodia/internal/flagx"
	"github.com/docforensics/custodia/internal/timex"
)

// jsonConfig is the JSON-file shape of the configuration. Durations accept
// both strings ("30m") and integer nanoseconds.
type jsonConfig struct {
	DataDir               string         `json:"data_dir"`
	EncryptionEnabled     *bool          `json:"encryption_enabled"`
	PassphraseEnv         string         `json:"passphrase_env"`
	KeySalt               string         `json:"key_salt"`
	SessionTimeout        timex.Duration `json:"session_timeout"`
	MaxConcurrentSessions int            `json:"max_concurrent_sessions"`
	MaxActivities         int            `json:"max_activities"`
	MaxActivityRate       float64        `json:"max_activity_rate"`
	MaxDistinctIPs        int            `json:"max_distinct_ips"`
	RecentSessionWindow   int            `json:"recent_session_window"`
}

// parseJSON overlays values from the JSON file named by -c/-config, if any.
// Absent fields keep their current values. Unreadable or invalid files
// panic, matching flag-parse behavior: a tool started with a bad config
// should not run at all.
func parseJSON(cfg *custodia.Config) {
	path := flagx.JSONConfigFlag()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	c := &jsonConfig{}
	if err := json.Unmarshal(raw, c); err != nil {
		panic(err)
	}

	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	if c.EncryptionEnabled != nil {
		cfg.EncryptionEnabled = *c.EncryptionEnabled
	}
	if c.PassphraseEnv != "" {
		cfg.PassphraseEnv = c.PassphraseEnv
	}
	if c.KeySalt != "" {
		cfg.KeySalt = c.KeySalt
	}
	if c.SessionTimeout.Duration > 0 {
		cfg.SessionTimeout = time.Duration(c.SessionTimeout.Duration)
	}
	if c.MaxConcurrentSessions > 0 {
		cfg.Thresholds.MaxConcurrentSessions = c.MaxConcurrentSessions
	}
	if c.MaxActivities > 0 {
		cfg.Thresholds.MaxActivities = c.MaxActivities
	}
	if c.MaxActivityRate > 0 {
		cfg.Thresholds.MaxActivityRate = c.MaxActivityRate
	}
	if c.MaxDistinctIPs > 0 {
		cfg.Thresholds.MaxDistinctIPs = c.MaxDistinctIPs
	}
	if c.RecentSessionWindow > 0 {
		cfg.Thresholds.RecentSessionWindow = c.RecentSessionWindow
	}
}
