// Package report builds and persists the chain-of-custody artifacts of a
// scan: the per-file JSON report, the batch CSV and the Markdown summary.
package report

import (
	"path/filepath"
	"strings"

	"github.com/a3tai/pdf-forensics/internal/pdf"
	"github.com/a3tai/pdf-forensics/internal/scan"
)

// TimestampLayout is RFC 3339 in UTC with microseconds and a trailing Z
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// reportSuffix replaces the .pdf extension in report file names
const reportSuffix = "_forensic_report.json"

// ForensicReport is the persisted record of one scan. It is written once
// and never modified.
type ForensicReport struct {
	ScanID                   string         `json:"scan_id,omitempty"`
	ScanTimestamp            string         `json:"scan_timestamp"`
	FileName                 string         `json:"file_name"`
	FilePath                 string         `json:"file_path"`
	FileSHA256               string         `json:"file_sha256"`
	FileSizeBytes            int64          `json:"file_size_bytes"`
	TotalPages               int            `json:"total_pages"`
	TotalBlocks              int            `json:"total_blocks"`
	SuspiciousBlocks         int            `json:"suspicious_blocks"`
	SuspiciousHexBlocks      int            `json:"suspicious_hex_blocks"`
	SuspiciousFontReferences int            `json:"suspicious_font_references"`
	Findings                 []scan.Finding `json:"findings"`
	Verdict                  scan.Verdict   `json:"verdict"`
	DocumentStatus           string         `json:"document_status"`
	DocumentError            string         `json:"document_error,omitempty"`
	ExtractionError          string         `json:"extraction_error,omitempty"`
}

// Build assembles the report for a scan result. The verdict is recomputed
// by the result's pipeline, never supplied separately.
func Build(result *scan.Result) ForensicReport {
	findings := result.Findings
	if findings == nil {
		findings = []scan.Finding{}
	}

	return ForensicReport{
		ScanTimestamp:            result.ScannedAt.UTC().Format(TimestampLayout),
		FileName:                 result.Target.Name,
		FilePath:                 result.Target.Path,
		FileSHA256:               result.Target.SHA256,
		FileSizeBytes:            result.Target.Size,
		TotalPages:               result.Signals.TotalPages,
		TotalBlocks:              result.Signals.TotalBlocks,
		SuspiciousBlocks:         result.Signals.SuspiciousBlocks,
		SuspiciousHexBlocks:      result.Signals.SuspiciousHexBlocks,
		SuspiciousFontReferences: result.Signals.SuspiciousFontReferences,
		Findings:                 findings,
		Verdict:                  result.Verdict,
		DocumentStatus:           result.DocumentStatus,
		DocumentError:            result.DocumentError,
		ExtractionError:          result.ExtractionError,
	}
}

// AlternateFileName is the name used when FileName is already taken by an
// earlier report: "invoice.pdf" and id "42" give
// "invoice_forensic_report_42.json"
func AlternateFileName(source, id string) string {
	return strings.TrimSuffix(FileName(source), ".json") + "_" + id + ".json"
}

// FileName derives the report file name from the scanned file:
// "invoice.pdf" becomes "invoice_forensic_report.json"
func FileName(source string) string {
	return pdf.TrimPDFExtension(filepath.Base(source)) + reportSuffix
}
