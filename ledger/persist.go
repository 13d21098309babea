package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/docforensics/custodia/internal/filex"
)

// envelope is the on-disk shape of a ledger file: a version/algorithm header
// followed by every committed entry with its hash fields.
type envelope struct {
	FormatVersion int      `json:"format_version"`
	HashAlg       string   `json:"hash_alg"`
	Entries       []*Entry `json:"entries"`
}

// persistLocked writes the whole ledger durably. Callers hold l.mu.
func (l *Ledger) persistLocked() error {
	if l.path == "" {
		return nil
	}
	data, err := json.Marshal(envelope{
		FormatVersion: FormatVersion,
		HashAlg:       HashAlg,
		Entries:       l.entries,
	})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if l.cipher != nil {
		if data, err = l.cipher.Encrypt(data); err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
	}
	return filex.WriteFileAtomic(l.path, data, 0o600)
}

func (l *Ledger) load() error {
	if l.path == "" {
		return nil
	}
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	if len(raw) == 0 {
		return nil
	}

	data := raw
	if l.cipher != nil {
		plain, derr := l.cipher.Decrypt(raw)
		if derr != nil {
			// The file may predate encryption being enabled. Fall back to a
			// plaintext parse instead of refusing to start.
			l.log.Warn(context.Background(), "ledger decrypt failed, attempting plaintext parse",
				"path", l.path, "error", derr)
		} else {
			data = plain
		}
	}

	entries, err := decodeEnvelope(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreadable, l.path, err)
	}
	l.entries = entries
	return nil
}

func decodeEnvelope(data []byte) ([]*Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", env.FormatVersion)
	}
	if env.HashAlg != HashAlg {
		return nil, fmt.Errorf("unsupported hash algorithm %q", env.HashAlg)
	}
	for _, e := range env.Entries {
		if e.Payload == nil {
			e.Payload = map[string]any{}
		}
	}
	return env.Entries, nil
}

// FromJSON reconstructs an in-memory ledger from bytes produced by
// ExportJSON (or from a ledger file read directly). The result has no
// backing file; pass opts to attach one or a logger.
func FromJSON(data []byte, opts Options) (*Ledger, error) {
	l, err := New(Options{Cipher: opts.Cipher, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	entries, err := decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	l.entries = entries
	l.path = opts.Path
	return l, nil
}
