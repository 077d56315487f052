package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/a3tai/pdf-forensics/internal/scan"
)

// Row is one line of the batch CSV
type Row struct {
	FileName    string
	Signals     scan.SignalCounts
	Verdict     scan.Verdict
	Quarantined bool
	SHA256      string
}

// CSVHeader is the first line of every batch CSV
var CSVHeader = []string{
	"filename",
	"suspicious_blocks",
	"total_blocks",
	"suspicious_hex_blocks",
	"suspicious_font_references",
	"verdict",
	"quarantined",
	"file_sha256",
}

// RowFromResult converts a scan result to a CSV row
func RowFromResult(result *scan.Result, quarantined bool) Row {
	return Row{
		FileName:    result.Target.Name,
		Signals:     result.Signals,
		Verdict:     result.Verdict,
		Quarantined: quarantined,
		SHA256:      result.Target.SHA256,
	}
}

// WriteCSV writes the header and one line per row
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.FileName,
			strconv.Itoa(row.Signals.SuspiciousBlocks),
			strconv.Itoa(row.Signals.TotalBlocks),
			strconv.Itoa(row.Signals.SuspiciousHexBlocks),
			strconv.Itoa(row.Signals.SuspiciousFontReferences),
			string(row.Verdict),
			strconv.FormatBool(row.Quarantined),
			row.SHA256,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces the file at path with a fresh batch CSV
func WriteCSVFile(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("cannot create CSV directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create CSV file: %w", err)
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("cannot write CSV file: %w", err)
	}

	return f.Close()
}
