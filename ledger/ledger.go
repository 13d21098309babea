// Package ledger implements a generic append-only, hash-linked ledger of
// immutable entries. Each entry carries a content hash of its canonicalized
// payload and a chain hash linking it to its predecessor, so any retroactive
// edit of the history is detectable by re-verification. The audit trail and
// per-document chains of custody are thin specializations of this engine.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docforensics/custodia/cryptox"
	"github.com/docforensics/custodia/logging"
)

// ErrUnreadable reports a ledger file that exists but cannot be parsed,
// e.g. after a crash mid-write or external corruption of the file itself.
// It is distinct from chain corruption, which is surfaced by Verify.
var ErrUnreadable = errors.New("ledger: unreadable ledger file")

// Options configures a Ledger.
type Options struct {
	// Path of the backing file. Empty means in-memory only (no persistence).
	Path string
	// Cipher, when set, encrypts the file at rest. If decryption fails on
	// load the file is retried as plaintext and a warning is logged.
	Cipher cryptox.Cipher
	// Logger for persistence diagnostics. Nil means no logging.
	Logger logging.Logger
}

// Ledger is an append-only hash chain. Appends are linearized by an
// exclusive lock held across the read-tail/compute/commit/persist sequence,
// so concurrent appenders can never fork the chain. Committed entries are
// immutable, which lets reads run concurrently on a snapshot.
type Ledger struct {
	mu      sync.RWMutex
	entries []*Entry

	path   string
	cipher cryptox.Cipher
	log    logging.Logger

	lastPersistErr error
	persistFails   int64
}

// New opens the ledger at opts.Path, loading any existing entries. A
// missing file yields an empty ledger; an unparseable one returns
// ErrUnreadable rather than silently truncating history.
func New(opts Options) (*Ledger, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	l := &Ledger{path: opts.Path, cipher: opts.Cipher, log: log}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Append canonicalizes payload, links it to the current tail, commits the
// entry and durably persists the ledger before returning. The returned id
// identifies the committed entry.
//
// A persistence failure does not roll back the in-memory commit: the entry
// id is returned together with the error, and the failure is retained for
// the health surface. Only canonicalization of an unserializable payload
// prevents the commit itself.
func (l *Ledger) Append(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].ChainHash
	}

	e := &Entry{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
		ContentHash: hashHex(canonical),
		PrevHash:    prev,
		ChainHash:   hashHex(canonical, []byte(prev)),
	}
	l.entries = append(l.entries, e)

	if err := l.persistLocked(); err != nil {
		l.lastPersistErr = err
		l.persistFails++
		l.log.Error(context.Background(), "ledger persist failed",
			"path", l.path, "entry_id", e.ID, "error", err)
		return e.ID, fmt.Errorf("ledger: persist: %w", err)
	}
	l.lastPersistErr = nil
	return e.ID, nil
}

// Len returns the number of committed entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a snapshot of the committed entries in append order.
// The entries themselves are shared and must be treated as read-only.
func (l *Ledger) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Path returns the backing file path ("" for in-memory ledgers).
func (l *Ledger) Path() string { return l.path }

// LastPersistError returns the error from the most recent failed persist,
// or nil if the last persist succeeded.
func (l *Ledger) LastPersistError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastPersistErr
}

// PersistFailures returns how many appends failed to reach disk since the
// ledger was opened.
func (l *Ledger) PersistFailures() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.persistFails
}
