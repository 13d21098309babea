// Package custodia wires the tamper-evident audit subsystem together: the
// global audit trail, the per-document chain-of-custody registry and the
// session tracker, all persisting under one data directory. Callers build a
// System once at startup and inject its components into their handlers
// instead of reaching for process-wide globals.
package custodia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docforensics/custodia/audit"
	"github.com/docforensics/custodia/cryptox"
	"github.com/docforensics/custodia/custody"
	"github.com/docforensics/custodia/internal/filex"
	"github.com/docforensics/custodia/logging"
	"github.com/docforensics/custodia/session"
)

// File layout under Config.DataDir.
const (
	AuditChainFile = "audit_chain.json"
	CustodyDir     = "custody"
	SessionsFile   = "sessions.db"
)

// System bundles the constructed components. Trail, Custody and Sessions
// are safe for concurrent use by multiple request handlers and workers.
type System struct {
	Trail    *audit.Trail
	Custody  *custody.Registry
	Sessions *session.Tracker
}

// Open builds the subsystem from cfg: it prepares the data directory,
// derives the at-rest cipher when encryption is enabled, loads the
// persisted audit chain and custody chains, and opens the session store.
func Open(ctx context.Context, cfg *Config, log logging.Logger) (*System, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("custodia: %w", err)
	}

	cipher, err := buildCipher(cfg)
	if err != nil {
		return nil, err
	}

	trail, err := audit.New(audit.Options{
		Path:   filepath.Join(cfg.DataDir, AuditChainFile),
		Cipher: cipher,
		Logger: log.With("component", "audit"),
	})
	if err != nil {
		return nil, fmt.Errorf("custodia: open audit trail: %w", err)
	}

	registry, err := custody.NewRegistry(custody.Options{
		Dir:    filepath.Join(cfg.DataDir, CustodyDir),
		Cipher: cipher,
		Logger: log.With("component", "custody"),
		Trail:  trail,
	})
	if err != nil {
		return nil, fmt.Errorf("custodia: open custody registry: %w", err)
	}

	tracker, err := session.NewTracker(ctx, session.Options{
		StorePath:  filepath.Join(cfg.DataDir, SessionsFile),
		Trail:      trail,
		Timeout:    cfg.SessionTimeout,
		Thresholds: cfg.Thresholds,
		Logger:     log.With("component", "session"),
	})
	if err != nil {
		return nil, fmt.Errorf("custodia: open session tracker: %w", err)
	}

	log.Info(ctx, "audit subsystem ready",
		"data_dir", cfg.DataDir,
		"encrypted", cfg.EncryptionEnabled,
		"audit_entries", trail.Len())
	return &System{Trail: trail, Custody: registry, Sessions: tracker}, nil
}

// Close releases the session store. Ledger files need no teardown: every
// append is already durable when it returns.
func (s *System) Close() error {
	return s.Sessions.Close()
}

// buildCipher derives the at-rest cipher from the configured passphrase
// environment variable. Encryption disabled yields a nil cipher, meaning
// plaintext ledger files.
func buildCipher(cfg *Config) (cryptox.Cipher, error) {
	if !cfg.EncryptionEnabled {
		return nil, nil
	}
	passphrase := os.Getenv(cfg.PassphraseEnv)
	if passphrase == "" {
		return nil, fmt.Errorf("custodia: encryption enabled but %s is not set", cfg.PassphraseEnv)
	}
	key := cryptox.DeriveKey([]byte(passphrase), []byte(cfg.KeySalt))
	defer cryptox.WipeBytes(key)
	return cryptox.NewAESGCM(key)
}
