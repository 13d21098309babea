package ledger

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"
)

// ExportJSON serializes the ledger, hash fields included, to the same
// envelope format used on disk. The output is sufficient to reconstruct
// the ledger via FromJSON and re-run verification with identical results.
func (l *Ledger) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(envelope{
		FormatVersion: FormatVersion,
		HashAlg:       HashAlg,
		Entries:       l.Entries(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ledger: export json: %w", err)
	}
	return data, nil
}

// ExportCSV flattens the ledger to one row per entry for spreadsheet use.
// The payload column holds the payload as compact JSON; the hash columns
// are carried so a flattened export still names what was signed.
func (l *Ledger) ExportCSV() ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"entry_id", "timestamp", "payload", "content_hash", "previous_hash", "chain_hash"}); err != nil {
		return nil, fmt.Errorf("ledger: export csv: %w", err)
	}
	for _, e := range l.Entries() {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("ledger: export csv: entry %s: %w", e.ID, err)
		}
		row := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339Nano),
			string(payload),
			e.ContentHash,
			e.PrevHash,
			e.ChainHash,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("ledger: export csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ledger: export csv: %w", err)
	}
	return buf.Bytes(), nil
}
