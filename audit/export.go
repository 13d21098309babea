package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportJSON exports the full-fidelity chain (reloadable and re-verifiable
// via ledger.FromJSON).
func (t *Trail) ExportJSON() ([]byte, error) { return t.led.ExportJSON() }

// ExportCSV exports the flattened chain for spreadsheets.
func (t *Trail) ExportCSV() ([]byte, error) { return t.led.ExportCSV() }

// ExportXLSX renders the trail as a spreadsheet workbook with the audit
// fields broken out into columns.
func (t *Trail) ExportXLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Trail"
	f.SetSheetName("Sheet1", sheet)

	header := []any{"entry_id", "timestamp", "action", "user_id", "document_id", "ip_address", "user_agent", "details", "content_hash", "chain_hash"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("audit: export xlsx: %w", err)
	}

	for i, e := range t.led.Entries() {
		details := ""
		if d, ok := e.Payload["details"]; ok {
			b, err := json.Marshal(d)
			if err != nil {
				return nil, fmt.Errorf("audit: export xlsx: entry %s: %w", e.ID, err)
			}
			details = string(b)
		}
		row := []any{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			stringField(e.Payload, "action"),
			stringField(e.Payload, "user_id"),
			stringField(e.Payload, "document_id"),
			stringField(e.Payload, "ip_address"),
			stringField(e.Payload, "user_agent"),
			details,
			e.ContentHash,
			e.ChainHash,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("audit: export xlsx: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("audit: export xlsx: %w", err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("audit: export xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func stringField(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}
