package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/a3tai/pdf-forensics/internal/pdf"
	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
	"github.com/a3tai/pdf-forensics/internal/pdf/structure"
)

// Document status values
const (
	DocumentOK      = "ok"
	DocumentCorrupt = "corrupt"
	// DocumentExtractionFailed marks a document that opened but whose pages
	// could not be walked to the end. Its counts are not a measurement.
	DocumentExtractionFailed = "extraction_failed"
)

// Target identifies the scanned bytes
type Target struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	SHA256    string `json:"sha256"`
	Size      int64  `json:"size_bytes"`
	PageCount int    `json:"page_count"`
}

// Result is the complete in-memory outcome of one scan. It is not modified
// after Scan returns.
type Result struct {
	ScannedAt             time.Time    `json:"scanned_at"`
	Target                Target       `json:"file"`
	DocumentStatus        string       `json:"document_status"`
	DocumentError         string       `json:"document_error,omitempty"`
	Encrypted             bool         `json:"encrypted"`
	Metadata              Metadata     `json:"metadata"`
	IsModified            bool         `json:"is_modified"`
	DateNote              string       `json:"date_note,omitempty"`
	Threat                ThreatSignal `json:"threat_intelligence"`
	Signals               SignalCounts `json:"signals"`
	SkippedPages          []int        `json:"skipped_pages,omitempty"`
	ExtractionError       string       `json:"extraction_error,omitempty"`
	Findings              []Finding    `json:"findings"`
	Verdict               Verdict      `json:"verdict"`
	QuarantineRecommended bool         `json:"quarantine_recommended"`
}

// Scanner runs the signal pipeline over single files. A Scanner holds no
// per-scan state and can be shared between goroutines.
type Scanner struct {
	dumper structure.Dumper
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithPolicy replaces the default thresholds
func WithPolicy(policy Policy) Option {
	return func(s *Scanner) {
		s.policy = policy
	}
}

// WithClock replaces time.Now, e.g. for the future-date check in tests
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a Scanner that reads structure dumps from dumper
func NewScanner(dumper structure.Dumper, opts ...Option) *Scanner {
	s := &Scanner{
		dumper: dumper,
		policy: DefaultPolicy(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scanner")
	return s
}

// Policy returns the thresholds in use
func (s *Scanner) Policy() Policy {
	return s.policy
}

// Scan runs every signal extractor over the file at path.
//
// Only a failure to read the file itself is returned as an error. A corrupt
// document, an undecodable page or a failed structure dump degrade the
// affected signal to zero and are recorded on the Result. A cancelled ctx
// ends the page walk with DocumentExtractionFailed.
func (s *Scanner) Scan(ctx context.Context, path string) (*Result, error) {
	now := s.now()

	sum, size, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ScannedAt: now.UTC(),
		Target: Target{
			Path:   path,
			Name:   filepath.Base(path),
			SHA256: sum,
			Size:   size,
		},
		DocumentStatus: DocumentOK,
		Findings:       []Finding{},
	}

	result.Threat = DetectThreats(s.dumper.Dump(ctx, path))
	if result.Threat.StructureStatus != StructureOK {
		s.logger.Warn("structure dump unavailable, keyword signal degraded",
			"path", path, "status", result.Threat.StructureStatus)
	}

	doc, err := pdf.Open(path)
	if err != nil {
		s.logger.Warn("document could not be opened, reporting zero signal", "path", path, "error", err)
		result.DocumentStatus = DocumentCorrupt
		result.DocumentError = err.Error()
		result.Encrypted = errors.Is(err, pdf.ErrEncrypted)
		result.Metadata = ExtractMetadata(pdf.Info{}, now).Metadata
	} else {
		defer doc.Close()

		result.Encrypted = doc.Encrypted()

		meta := ExtractMetadata(doc.Info(), now)
		result.Metadata = meta.Metadata
		result.IsModified = meta.IsModified
		result.DateNote = meta.DateNote

		ex, err := s.extract(ctx, doc)
		if err != nil {
			s.logger.Warn("signal extraction failed, reporting zero signal", "path", path, "error", err)
			result.DocumentStatus = DocumentExtractionFailed
			result.ExtractionError = err.Error()
			result.Signals.TotalPages = ex.counts.TotalPages
		} else {
			result.Signals = ex.counts
			result.SkippedPages = ex.skipped
			result.Findings = append(result.Findings, ex.findings...)
		}
	}

	result.Target.PageCount = result.Signals.TotalPages
	result.Findings = append(result.Findings, result.Threat.Findings()...)
	result.Verdict = s.policy.Verdict(result.Signals)
	result.QuarantineRecommended = s.policy.Quarantine(result.Signals)

	s.logger.Info("scan complete",
		"path", path,
		"verdict", result.Verdict,
		"suspicious_blocks", result.Signals.SuspiciousBlocks,
		"hex_blocks", result.Signals.SuspiciousHexBlocks,
		"font_references", result.Signals.SuspiciousFontReferences,
		"threat", result.Threat.Flagged)

	return result, nil
}

type extraction struct {
	counts   SignalCounts
	findings []Finding
	skipped  []int
}

// extract walks the pages. Either every page contributed or the whole
// extraction failed with an Extraction error; partial counts never escape.
// A failed extraction still carries the page count when it is known.
func (s *Scanner) extract(ctx context.Context, doc *pdf.Document) (ex extraction, err error) {
	pages := 0
	defer func() {
		if r := recover(); r != nil {
			ex = extraction{counts: SignalCounts{TotalPages: pages}}
			err = pdferrors.New(pdferrors.ErrorTypeExtraction, "signal extraction panicked").
				WithContext(fmt.Sprint(r)).
				WithFile(doc.Path())
		}
	}()

	pages = doc.NumPage()
	ex.counts.TotalPages = pages

	for rec, pageErr := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return extraction{counts: SignalCounts{TotalPages: pages}},
				pdferrors.Wrap(pdferrors.ErrorTypeExtraction, "scan cancelled", err).WithFile(doc.Path())
		}
		if pageErr != nil {
			s.logger.Warn("skipping page", "path", doc.Path(), "page", rec.Index+1, "error", pageErr)
			ex.skipped = append(ex.skipped, rec.Index+1)
			continue
		}

		page := ExtractPage(rec)
		ex.counts = ex.counts.Add(page)
		ex.findings = append(ex.findings, page.Findings()...)
	}

	return ex, nil
}
