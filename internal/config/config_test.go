package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"custodia-test"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func TestLoad_Defaults(t *testing.T) {
	withArgs(t)

	cfg := Load()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.False(t, cfg.EncryptionEnabled)
	assert.Equal(t, "CUSTODIA_PASSPHRASE", cfg.PassphraseEnv)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 3, cfg.Thresholds.MaxConcurrentSessions)
}

func TestLoad_JSONOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "/srv/custodia",
		"encryption_enabled": true,
		"session_timeout": "45m",
		"max_distinct_ips": 8
	}`), 0o600))
	withArgs(t, "-c", path)

	cfg := Load()
	assert.Equal(t, "/srv/custodia", cfg.DataDir)
	assert.True(t, cfg.EncryptionEnabled)
	assert.Equal(t, 45*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 8, cfg.Thresholds.MaxDistinctIPs)
	// Untouched fields keep their defaults.
	assert.Equal(t, "CUSTODIA_PASSPHRASE", cfg.PassphraseEnv)
	assert.Equal(t, 100, cfg.Thresholds.MaxActivities)
}

func TestLoad_FlagsOverrideJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "/from-json", "session_timeout": "45m"}`), 0o600))
	withArgs(t, "-c", path, "-d", "/from-flag", "-t", "15", "-e")

	cfg := Load()
	assert.Equal(t, "/from-flag", cfg.DataDir)
	assert.Equal(t, 15*time.Minute, cfg.SessionTimeout)
	assert.True(t, cfg.EncryptionEnabled)
}

func TestLoad_NanosecondTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session_timeout": 1800000000000}`), 0o600))
	withArgs(t, "-c", path)

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
}

func TestLoad_BadJSONPanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	withArgs(t, "-c", path)

	assert.Panics(t, func() { Load() })
}
