package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HashAlg identifies the digest algorithm used for all entry hashes. The
// value is persisted alongside the entries so a future algorithm change is
// detected instead of silently failing verification of old ledgers.
const HashAlg = "sha256"

// FormatVersion is the on-disk ledger format version.
const FormatVersion = 1

// Entry is one immutable record of a hash-linked ledger. Once committed it
// is never modified; verification recomputes the hash fields from Payload
// and compares them to the stored values.
type Entry struct {
	ID        string         `json:"entry_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`

	// ContentHash is H(canonical(Payload)).
	ContentHash string `json:"content_hash"`
	// PrevHash is the predecessor's ChainHash, or "" for the first entry.
	PrevHash string `json:"previous_hash"`
	// ChainHash is H(canonical(Payload) || PrevHash).
	ChainHash string `json:"chain_hash"`
}

func hashHex(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
