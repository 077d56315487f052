// Package forensics orchestrates intake, scanning, reporting, custody and
// quarantine for the HTTP, MCP and CLI surfaces.
package forensics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/custody"
	"github.com/a3tai/pdf-forensics/internal/disposition"
	"github.com/a3tai/pdf-forensics/internal/pdf"
	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
	"github.com/a3tai/pdf-forensics/internal/pdf/security"
	"github.com/a3tai/pdf-forensics/internal/pdf/structure"
	"github.com/a3tai/pdf-forensics/internal/report"
	"github.com/a3tai/pdf-forensics/internal/scan"
)

var (
	// ErrInvalidUpload is returned before anything touches the intake directory
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrOutsideIntake is returned for paths that escape the intake directory
	ErrOutsideIntake = errors.New("path is outside the intake directory")
	// ErrLedgerDisabled is returned by Custody when no ledger is configured
	ErrLedgerDisabled = errors.New("custody ledger is disabled")
)

// uploadTempPrefix marks partial uploads so batch scans skip them
const uploadTempPrefix = ".upload-"

// Ledger is the custody store used by the service
type Ledger interface {
	Append(ctx context.Context, entry custody.Entry) (custody.Entry, error)
	List(ctx context.Context, limit int) ([]custody.Entry, error)
}

// Options wires the collaborators of a Service
type Options struct {
	Scanner     *scan.Scanner
	Reports     *report.Writer
	Quarantine  *disposition.Controller
	Ledger      Ledger // optional
	IntakeDir   string
	CSVPath     string
	MaxFileSize int64
	Logger      *slog.Logger
}

// Service is safe for concurrent use by independent requests; each scan
// owns its document handle and report file.
type Service struct {
	scanner    *scan.Scanner
	reports    *report.Writer
	quarantine *disposition.Controller
	ledger     Ledger
	intake     *security.PathValidator
	validator  *pdf.Validator
	csvPath    string
	logger     *slog.Logger
}

// New creates a Service from explicit collaborators
func New(opts Options) (*Service, error) {
	if opts.Scanner == nil || opts.Reports == nil || opts.Quarantine == nil {
		return nil, errors.New("scanner, report writer and quarantine controller are required")
	}

	intake, err := security.NewPathValidator(opts.IntakeDir)
	if err != nil {
		return nil, fmt.Errorf("invalid intake directory: %w", err)
	}
	if err := os.MkdirAll(intake.GetConfiguredDirectory(), config.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create intake directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		scanner:    opts.Scanner,
		reports:    opts.Reports,
		quarantine: opts.Quarantine,
		ledger:     opts.Ledger,
		intake:     intake,
		validator:  pdf.NewValidator(opts.MaxFileSize),
		csvPath:    opts.CSVPath,
		logger:     logger.With("component", "forensics"),
	}, nil
}

// NewFromConfig builds every collaborator from cfg. Close the service to
// release the custody ledger.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	dumper, err := structure.New(cfg.StructureTool, logger)
	if err != nil {
		return nil, err
	}

	reports, err := report.NewWriter(cfg.ReportDir)
	if err != nil {
		return nil, err
	}

	quarantine, err := disposition.NewController(cfg.QuarantineDir, logger)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Scanner:     scan.NewScanner(dumper, scan.WithPolicy(cfg.Policy()), scan.WithLogger(logger)),
		Reports:     reports,
		Quarantine:  quarantine,
		IntakeDir:   cfg.IntakeDir,
		CSVPath:     cfg.CSVPath,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	}

	if cfg.LedgerPath != "" {
		ledger, err := custody.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		opts.Ledger = ledger
	}

	svc, err := New(opts)
	if err != nil {
		if closer, ok := opts.Ledger.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return svc, nil
}

// Close releases the ledger, if any
func (s *Service) Close() error {
	if closer, ok := s.ledger.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// IntakeDir returns the absolute intake directory
func (s *Service) IntakeDir() string {
	return s.intake.GetConfiguredDirectory()
}

// MaxFileSize returns the upload size limit in bytes
func (s *Service) MaxFileSize() int64 {
	return s.validator.MaxFileSize()
}

// Upload saves content under filename in the intake directory and scans it.
//
// Name checks run before anything is written. A failure to save the file
// aborts the operation; later step failures are reported on the Outcome.
func (s *Service) Upload(ctx context.Context, filename string, content io.Reader) (*Outcome, error) {
	if err := s.validator.ValidateName(filename); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	dest, err := s.intake.ResolveUpload(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	if err := s.validator.ValidateName(dest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	if err := s.save(dest, content); err != nil {
		return nil, err
	}
	s.logger.Info("upload saved", "path", dest)

	return s.scanAndRecord(ctx, dest, true)
}

// save streams content to dest through a temporary file, enforcing the
// size limit while copying
func (s *Service) save(dest string, content io.Reader) error {
	tmp, err := os.CreateTemp(s.IntakeDir(), uploadTempPrefix+"*")
	if err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot create upload file", err).WithFile(dest)
	}
	tmpName := tmp.Name()

	src := content
	if limit := s.validator.MaxFileSize(); limit > 0 {
		src = io.LimitReader(content, limit+1)
	}

	n, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmpName)
		return pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot save upload", copyErr).WithFile(dest)
	case closeErr != nil:
		os.Remove(tmpName)
		return pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot save upload", closeErr).WithFile(dest)
	}

	if err := s.validator.ValidateSize(n); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot save upload", err).WithFile(dest)
	}
	return nil
}

// ScanFile scans a file that already sits in the intake directory and
// quarantines it when the block threshold is reached
func (s *Service) ScanFile(ctx context.Context, path string) (*Outcome, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.IntakeDir(), path)
	}
	if err := s.intake.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutsideIntake, err)
	}

	return s.scanAndRecord(ctx, path, true)
}

// Inspect scans a file wherever it is, writes the report and records it in
// the ledger. The file is never moved.
func (s *Service) Inspect(ctx context.Context, path string) (*Outcome, error) {
	return s.scanAndRecord(ctx, path, false)
}

func (s *Service) scanAndRecord(ctx context.Context, path string, allowQuarantine bool) (*Outcome, error) {
	result, err := s.scanner.Scan(ctx, path)
	if err != nil {
		return nil, err
	}

	// A cancelled walk measured nothing; leave no report or custody entry
	// that could be read as a finished scan
	if err := ctx.Err(); err != nil {
		s.logger.Warn("scan cancelled, nothing recorded", "path", path, "error", err)
		return nil, fmt.Errorf("scan of %s cancelled: %w", filepath.Base(path), err)
	}

	outcome := &Outcome{
		ScanID:     uuid.NewString(),
		Result:     result,
		StepErrors: []*StepError{},
	}

	forensicReport := report.Build(result)
	forensicReport.ScanID = outcome.ScanID
	reportPath, err := s.reports.Write(forensicReport)
	if err != nil {
		outcome.addStepError(StepReport, err)
	} else {
		outcome.ReportPath = reportPath
	}

	// Only after the result and its report are final
	if allowQuarantine && result.QuarantineRecommended {
		dest, err := s.quarantine.Quarantine(path)
		if err != nil {
			outcome.addStepError(StepQuarantine, err)
		} else {
			outcome.Quarantined = true
			outcome.QuarantinePath = dest
		}
	}

	if s.ledger != nil {
		_, err := s.ledger.Append(ctx, custody.Entry{
			ScanID:           outcome.ScanID,
			ScannedAt:        result.ScannedAt,
			FileName:         result.Target.Name,
			FileSHA256:       result.Target.SHA256,
			Verdict:          string(result.Verdict),
			SuspiciousBlocks: result.Signals.SuspiciousBlocks,
			Quarantined:      outcome.Quarantined,
			ReportPath:       outcome.ReportPath,
		})
		if err != nil {
			outcome.addStepError(StepLedger, err)
		}
	}

	for _, stepErr := range outcome.StepErrors {
		s.logger.Error("scan step failed", "path", path, "scan_id", outcome.ScanID, "step", stepErr.Step, "error", stepErr.Err)
	}

	return outcome, nil
}

// BatchScan scans every regular file in the intake directory, one at a
// time, then writes the CSV.
//
// When ctx is cancelled the loop stops and the files processed so far are
// returned, with their CSV, together with the context error.
func (s *Service) BatchScan(ctx context.Context) (*BatchResult, error) {
	files, err := s.intake.ListFiles()
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot list intake directory", err)
	}

	batch := &BatchResult{
		Entries:  []BatchEntry{},
		Outcomes: []*Outcome{},
		Failures: []FileFailure{},
	}

	var cancelled error
	for _, path := range files {
		if strings.HasPrefix(filepath.Base(path), uploadTempPrefix) {
			continue
		}
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}

		outcome, err := s.scanAndRecord(ctx, path, true)
		if err != nil {
			if cancelled = ctx.Err(); cancelled != nil {
				break
			}
			s.logger.Warn("batch scan skipped file", "path", path, "error", err)
			batch.Failures = append(batch.Failures, FileFailure{FileName: filepath.Base(path), Error: err.Error()})
			continue
		}

		batch.Outcomes = append(batch.Outcomes, outcome)
		batch.Entries = append(batch.Entries, BatchEntry{
			FileName:         outcome.Result.Target.Name,
			SuspiciousBlocks: outcome.Result.Signals.SuspiciousBlocks,
		})
		batch.Rows = append(batch.Rows, report.RowFromResult(outcome.Result, outcome.Quarantined))
	}

	if s.csvPath != "" {
		if err := report.WriteCSVFile(s.csvPath, batch.Rows); err != nil {
			batch.CSVError = &StepError{Step: StepCSV, Err: err}
			s.logger.Error("batch CSV not written", "path", s.csvPath, "error", err)
		} else {
			batch.CSVPath = s.csvPath
		}
	}

	if cancelled != nil {
		s.logger.Warn("batch scan cancelled", "files", len(batch.Entries), "failures", len(batch.Failures), "error", cancelled)
		return batch, fmt.Errorf("batch scan cancelled: %w", cancelled)
	}

	s.logger.Info("batch scan complete", "files", len(batch.Entries), "failures", len(batch.Failures))
	return batch, nil
}

// Custody returns the newest ledger entries
func (s *Service) Custody(ctx context.Context, limit int) ([]custody.Entry, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.List(ctx, limit)
}
