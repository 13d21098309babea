package custody

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Export formats supported for custody chains.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatText = "text"
	FormatPDF  = "pdf"
)

// Export renders the document's custody chain in the requested format.
// JSON is full fidelity and re-verifiable; CSV and XLSX flatten the custody
// fields for spreadsheets; text and pdf are human-readable reports.
func (r *Registry) Export(documentID, format string) ([]byte, error) {
	led, err := r.lookup(documentID)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return led.ExportJSON()
	case FormatCSV:
		return r.exportCSV(documentID)
	case FormatXLSX:
		return r.exportXLSX(documentID)
	case FormatText:
		return r.exportText(documentID)
	case FormatPDF:
		return r.exportPDF(documentID)
	default:
		return nil, fmt.Errorf("custody: unsupported export format %q", format)
	}
}

func (r *Registry) exportCSV(documentID string) ([]byte, error) {
	entries, err := r.Entries(documentID)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"entry_id", "timestamp", "action", "user_id", "location", "hash_before", "hash_after", "details", "chain_hash"}); err != nil {
		return nil, fmt.Errorf("custody: export csv: %w", err)
	}
	for _, e := range entries {
		details := ""
		if d, ok := e.Payload["details"]; ok {
			b, err := json.Marshal(d)
			if err != nil {
				return nil, fmt.Errorf("custody: export csv: entry %s: %w", e.ID, err)
			}
			details = string(b)
		}
		row := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339Nano),
			payloadString(e.Payload, "action"),
			payloadString(e.Payload, "user_id"),
			payloadString(e.Payload, "location"),
			payloadString(e.Payload, "hash_before"),
			payloadString(e.Payload, "hash_after"),
			details,
			e.ChainHash,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("custody: export csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("custody: export csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Registry) exportXLSX(documentID string) ([]byte, error) {
	entries, err := r.Entries(documentID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Chain of Custody"
	f.SetSheetName("Sheet1", sheet)

	header := []any{"entry_id", "timestamp", "action", "user_id", "location", "hash_before", "hash_after", "details", "chain_hash"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("custody: export xlsx: %w", err)
	}

	for i, e := range entries {
		details := ""
		if d, ok := e.Payload["details"]; ok {
			b, err := json.Marshal(d)
			if err != nil {
				return nil, fmt.Errorf("custody: export xlsx: entry %s: %w", e.ID, err)
			}
			details = string(b)
		}
		row := []any{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			payloadString(e.Payload, "action"),
			payloadString(e.Payload, "user_id"),
			payloadString(e.Payload, "location"),
			payloadString(e.Payload, "hash_before"),
			payloadString(e.Payload, "hash_after"),
			details,
			e.ChainHash,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("custody: export xlsx: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("custody: export xlsx: %w", err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("custody: export xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Registry) exportText(documentID string) ([]byte, error) {
	lines, err := r.reportLines(documentID)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (r *Registry) exportPDF(documentID string) ([]byte, error) {
	lines, err := r.reportLines(documentID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Chain of Custody Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Chain of Custody Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	for _, line := range lines {
		pdf.MultiCell(0, 4.5, line, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("custody: export pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// reportLines builds the shared body of the text and PDF reports.
func (r *Registry) reportLines(documentID string) ([]string, error) {
	entries, err := r.Entries(documentID)
	if err != nil {
		return nil, err
	}
	summary, err := r.Summarize(documentID)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"CHAIN OF CUSTODY REPORT",
		"=======================",
		fmt.Sprintf("Document:   %s", documentID),
		fmt.Sprintf("Entries:    %d", summary.EntryCount),
		fmt.Sprintf("Custodians: %s", joinOrDash(summary.Custodians)),
		fmt.Sprintf("Locations:  %s", joinOrDash(summary.Locations)),
		fmt.Sprintf("Generated:  %s", time.Now().UTC().Format(time.RFC3339)),
		"",
	}
	for i, e := range entries {
		lines = append(lines,
			fmt.Sprintf("[%d] %s  %s", i, e.Timestamp.Format(time.RFC3339), payloadString(e.Payload, "action")),
			fmt.Sprintf("    entry_id: %s", e.ID),
			fmt.Sprintf("    user:     %s", payloadString(e.Payload, "user_id")),
		)
		if loc := payloadString(e.Payload, "location"); loc != "" {
			lines = append(lines, fmt.Sprintf("    location: %s", loc))
		}
		if h := payloadString(e.Payload, "hash_before"); h != "" {
			lines = append(lines, fmt.Sprintf("    hash_before: %s", h))
		}
		if h := payloadString(e.Payload, "hash_after"); h != "" {
			lines = append(lines, fmt.Sprintf("    hash_after:  %s", h))
		}
		lines = append(lines, fmt.Sprintf("    chain_hash:  %s", e.ChainHash), "")
	}
	return lines, nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}

func payloadString(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}
