// Package scan turns an opened PDF into signal counts, findings and a verdict.
package scan

import (
	"regexp"
	"strings"
	"time"

	"github.com/a3tai/pdf-forensics/internal/pdf"
	"github.com/a3tai/pdf-forensics/internal/pdf/structure"
)

// Unknown replaces absent or empty metadata values
const Unknown = "Unknown"

// FutureDatesNote is set when a document date lies after the scan time
const FutureDatesNote = "Future dates"

const pdfDateLayout = "20060102150405"

// Metadata is the normalized document-information dictionary
type Metadata struct {
	Title        string `json:"title"`
	Subject      string `json:"subject"`
	Keywords     string `json:"keywords"`
	CreationDate string `json:"creation_date"`
	ModDate      string `json:"modification_date"`
}

// MetadataSignal is the output of the metadata extractor
type MetadataSignal struct {
	Metadata   Metadata
	IsModified bool
	DateNote   string
}

// ExtractMetadata normalizes info and runs the date checks against now.
//
// IsModified compares the raw date strings byte for byte, so any edit
// counts. A date that cannot be parsed never sets the note.
func ExtractMetadata(info pdf.Info, now time.Time) MetadataSignal {
	signal := MetadataSignal{
		Metadata: Metadata{
			Title:        orUnknown(info.Title),
			Subject:      orUnknown(info.Subject),
			Keywords:     orUnknown(info.Keywords),
			CreationDate: orUnknown(info.CreationDate),
			ModDate:      orUnknown(info.ModDate),
		},
	}

	if info.CreationDate != "" && info.ModDate != "" {
		signal.IsModified = info.CreationDate != info.ModDate
	}

	created, okCreated := ParsePDFDate(info.CreationDate, now.Location())
	modified, okModified := ParsePDFDate(info.ModDate, now.Location())
	if okCreated && okModified && (created.After(now) || modified.After(now)) {
		signal.DateNote = FutureDatesNote
	}

	return signal
}

// ParsePDFDate reads the 14 digits after the "D:" prefix of a PDF date.
// Time zone suffixes are ignored; the digits are read in loc.
func ParsePDFDate(s string, loc *time.Location) (time.Time, bool) {
	if len(s) < 16 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(pdfDateLayout, s[2:16], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// ThreatKeywords are the active-content markers searched in the structure dump
var ThreatKeywords = []string{"/JavaScript", "/Launch", "/OpenAction"}

// Structure dump status values
const (
	StructureOK          = "ok"
	StructureUnavailable = "unavailable"
	StructureFailed      = "failed"
)

// ThreatSignal is the output of the active-content keyword check
type ThreatSignal struct {
	Flagged         bool     `json:"flagged"`
	Keywords        []string `json:"keywords"`
	StructureStatus string   `json:"structure_status"`
}

// DetectThreats looks for each keyword in the raw dump. One match is enough
// to flag the document; repeats do not matter.
func DetectThreats(dump string) ThreatSignal {
	signal := ThreatSignal{
		Keywords:        []string{},
		StructureStatus: StructureOK,
	}

	switch dump {
	case structure.SentinelNoStructure:
		signal.StructureStatus = StructureUnavailable
		return signal
	case structure.SentinelDumpFailed:
		signal.StructureStatus = StructureFailed
		return signal
	}

	for _, keyword := range ThreatKeywords {
		if strings.Contains(dump, keyword) {
			signal.Keywords = append(signal.Keywords, keyword)
		}
	}
	signal.Flagged = len(signal.Keywords) > 0

	return signal
}

// Findings returns one document-level finding per matched keyword
func (t ThreatSignal) Findings() []Finding {
	findings := make([]Finding, 0, len(t.Keywords))
	for _, keyword := range t.Keywords {
		findings = append(findings, Finding{
			Type:    FindingActiveContent,
			Count:   1,
			Details: keyword + " found in document structure",
		})
	}
	return findings
}

var hexBlockPattern = regexp.MustCompile(`<[0-9A-Fa-f]{8,}>`)

// maxHexSamples caps the samples attached to a hex finding, not the count
const maxHexSamples = 3

// PageSignals holds the signals of a single page
type PageSignals struct {
	Page             int // 0-based
	HexCount         int
	HexSamples       []string
	FontReference    bool
	TotalBlocks      int
	SuspiciousBlocks int
}

// ExtractPage computes the obfuscation and block signals of one page
func ExtractPage(rec pdf.PageRecord) PageSignals {
	signals := PageSignals{
		Page:        rec.Index,
		TotalBlocks: len(rec.Blocks),
	}

	matches := hexBlockPattern.FindAllString(rec.Text, -1)
	signals.HexCount = len(matches)
	if len(matches) > maxHexSamples {
		matches = matches[:maxHexSamples]
	}
	signals.HexSamples = matches

	signals.FontReference = strings.Contains(rec.Text, "/Font") || strings.Contains(rec.Text, "/FlateDecode")

	for _, block := range rec.Blocks {
		if block.Type == pdf.BlockText && strings.ContainsAny(block.Text, "<>") {
			signals.SuspiciousBlocks++
		}
	}

	return signals
}

// Findings returns the page findings: at most one hex finding and at most
// one font/compression finding
func (p PageSignals) Findings() []Finding {
	var findings []Finding
	if p.HexCount > 0 {
		findings = append(findings, Finding{
			Page:   p.Page + 1,
			Type:   FindingHexBlock,
			Count:  p.HexCount,
			Sample: p.HexSamples,
		})
	}
	if p.FontReference {
		findings = append(findings, Finding{
			Page:    p.Page + 1,
			Type:    FindingFontReference,
			Details: "/Font or /FlateDecode found",
		})
	}
	return findings
}

// Add folds a page into the counts. The font signal adds at most 1 per page.
func (c SignalCounts) Add(p PageSignals) SignalCounts {
	c.SuspiciousHexBlocks += p.HexCount
	if p.FontReference {
		c.SuspiciousFontReferences++
	}
	c.TotalBlocks += p.TotalBlocks
	c.SuspiciousBlocks += p.SuspiciousBlocks
	return c
}
