// Package custody tracks the chain of custody of individual documents.
// Every document owns exactly one hash-linked ledger, created lazily on its
// first custody event and persisted to its own file. Custody entries carry
// content hashes of the physical document before and after each handoff, so
// an undocumented modification between handoffs is detectable independently
// of ledger tampering.
package custody

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docforensics/custodia/audit"
	"github.com/docforensics/custodia/cryptox"
	"github.com/docforensics/custodia/internal/filex"
	"github.com/docforensics/custodia/internal/metrics"
	"github.com/docforensics/custodia/ledger"
	"github.com/docforensics/custodia/logging"
)

const metricLedgerName = "custody"

// ErrNotFound reports an unknown document id.
var ErrNotFound = errors.New("custody: document not found")

// Entry is the caller-facing shape of one custody event. Action and UserID
// identify what happened and who did it; HashBefore/HashAfter are content
// hashes of the physical document around the event, when known.
type Entry struct {
	Action     string
	UserID     string
	Details    map[string]any
	Location   string
	HashBefore string
	HashAfter  string
}

// Options configures a Registry.
type Options struct {
	// Dir holds one ledger file per document. Empty keeps all chains in
	// memory only.
	Dir    string
	Cipher cryptox.Cipher
	Logger logging.Logger
	// Trail, when set, receives a summarized custody_<action> event for
	// every custody entry. The registry never reads the trail back.
	Trail *audit.Trail
}

// Registry maps document ids to their custody ledgers. Each document's
// ledger is an independent lock domain, so custody writes on different
// documents never contend.
type Registry struct {
	mu      sync.Mutex
	ledgers map[string]*ledger.Ledger

	dir    string
	cipher cryptox.Cipher
	log    logging.Logger
	trail  *audit.Trail
}

// NewRegistry prepares the custody directory and indexes any chains already
// on disk. The chains themselves are loaded lazily.
func NewRegistry(opts Options) (*Registry, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	r := &Registry{
		ledgers: map[string]*ledger.Ledger{},
		dir:     opts.Dir,
		cipher:  opts.Cipher,
		log:     log,
		trail:   opts.Trail,
	}
	if r.dir != "" {
		if _, err := filex.EnsureDir(r.dir); err != nil {
			return nil, fmt.Errorf("custody: %w", err)
		}
		if err := r.loadExisting(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// loadExisting opens every persisted chain so Documents and Search see them.
// The document id is recovered from the payload of the chain's first entry.
func (r *Registry) loadExisting() error {
	matches, err := filepath.Glob(filepath.Join(r.dir, "custody_*.json"))
	if err != nil {
		return fmt.Errorf("custody: scan %s: %w", r.dir, err)
	}
	for _, path := range matches {
		led, err := ledger.New(ledger.Options{Path: path, Cipher: r.cipher, Logger: r.log})
		if err != nil {
			return fmt.Errorf("custody: load %s: %w", path, err)
		}
		entries := led.Entries()
		if len(entries) == 0 {
			continue
		}
		docID, _ := entries[0].Payload["document_id"].(string)
		if docID == "" {
			r.log.Warn(context.Background(), "custody chain without document id, skipping", "path", path)
			continue
		}
		r.ledgers[docID] = led
	}
	return nil
}

func (r *Registry) chainPath(documentID string) string {
	if r.dir == "" {
		return ""
	}
	return filepath.Join(r.dir, "custody_"+sanitizeID(documentID)+".json")
}

// sanitizeID makes a document id safe for use in a file name.
func sanitizeID(id string) string {
	return strings.Map(func(ch rune) rune {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return ch
		case ch == '.' || ch == '-' || ch == '_':
			return ch
		default:
			return '_'
		}
	}, id)
}

// ledgerFor returns the document's ledger, creating it on first use.
func (r *Registry) ledgerFor(documentID string) (*ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if led, ok := r.ledgers[documentID]; ok {
		return led, nil
	}
	led, err := ledger.New(ledger.Options{Path: r.chainPath(documentID), Cipher: r.cipher, Logger: r.log})
	if err != nil {
		return nil, err
	}
	r.ledgers[documentID] = led
	return led, nil
}

// lookup returns the ledger only if the document already has a chain.
func (r *Registry) lookup(documentID string) (*ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	led, ok := r.ledgers[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return led, nil
}

// AddEntry appends a custody event to the document's chain, creating the
// chain on first use, and mirrors a summarized event into the audit trail
// when one is attached. Returns the committed entry id.
func (r *Registry) AddEntry(ctx context.Context, documentID string, e Entry) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("%w: empty document id", ErrNotFound)
	}
	led, err := r.ledgerFor(documentID)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"document_id": documentID,
		"action":      e.Action,
		"user_id":     e.UserID,
	}
	if len(e.Details) > 0 {
		payload["details"] = e.Details
	}
	if e.Location != "" {
		payload["location"] = e.Location
	}
	if e.HashBefore != "" {
		payload["hash_before"] = e.HashBefore
	}
	if e.HashAfter != "" {
		payload["hash_after"] = e.HashAfter
	}

	id, err := led.Append(payload)
	if id != "" {
		metrics.LedgerAppends.WithLabelValues(metricLedgerName).Inc()
	}
	if err != nil {
		metrics.PersistFailures.WithLabelValues(metricLedgerName).Inc()
		r.log.Error(ctx, "custody entry not durable", "document_id", documentID, "action", e.Action, "error", err)
	}

	if r.trail != nil && id != "" {
		details := map[string]any{"custody_entry_id": id}
		if e.Location != "" {
			details["location"] = e.Location
		}
		if e.HashAfter != "" {
			details["hash_after"] = e.HashAfter
		}
		r.trail.Record(ctx, audit.Event{
			Action:     "custody_" + e.Action,
			UserID:     e.UserID,
			DocumentID: documentID,
			Details:    details,
		})
	}
	return id, err
}

// Entries returns the document's chain in append order.
func (r *Registry) Entries(documentID string) ([]*ledger.Entry, error) {
	led, err := r.lookup(documentID)
	if err != nil {
		return nil, err
	}
	return led.Entries(), nil
}

// Documents lists every document with a custody chain.
func (r *Registry) Documents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ledgers))
	for id := range r.ledgers {
		out = append(out, id)
	}
	return out
}

// Remove deletes the document's chain and its file, for when the document
// itself is deleted. Removing an unknown document is a no-op.
func (r *Registry) Remove(documentID string) error {
	r.mu.Lock()
	led, ok := r.ledgers[documentID]
	delete(r.ledgers, documentID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if path := led.Path(); path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("custody: remove %s: %w", path, err)
		}
	}
	return nil
}
