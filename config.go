package custodia

import (
	"time"

	"github.com/docforensics/custodia/session"
)

// Config holds runtime settings for the audit subsystem.
//
// Fields:
//   - DataDir: directory holding audit_chain.json, custody/ and sessions.db.
//   - EncryptionEnabled: encrypt ledger files at rest.
//   - PassphraseEnv: name of the environment variable holding the at-rest
//     passphrase when encryption is enabled.
//   - KeySalt: deployment-stable salt for passphrase key derivation.
//   - SessionTimeout: idle duration after which sessions count as ended.
//   - Thresholds: anomaly-detection thresholds.
type Config struct {
	DataDir           string
	EncryptionEnabled bool
	PassphraseEnv     string
	KeySalt           string
	SessionTimeout    time.Duration
	Thresholds        session.Thresholds
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./data"
	c.EncryptionEnabled = false
	c.PassphraseEnv = "CUSTODIA_PASSPHRASE"
	c.KeySalt = "custodia-at-rest-v1"
	c.SessionTimeout = session.DefaultTimeout
	c.Thresholds = session.DefaultThresholds()
}
