package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
)

// ErrReportExists is returned when every candidate report name is taken
var ErrReportExists = errors.New("report already exists")

// Writer persists forensic reports into one directory
type Writer struct {
	dir    string
	schema *Schema
}

// NewWriter creates a writer for dir. The directory is created on first write.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("report directory cannot be empty")
	}

	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}

	return &Writer{
		dir:    dir,
		schema: schema,
	}, nil
}

// Dir returns the report directory
func (w *Writer) Dir() string {
	return w.dir
}

// Marshal serializes the report with a 2-space indent and checks it
// against the schema
func (w *Writer) Marshal(report ForensicReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	if err := w.schema.Validate(data); err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// Write stores the report and returns its path. A failure here is an IO
// error for the report step only; the caller still owns a valid result.
//
// Reports are never replaced. When the derived name already holds an
// earlier report, the scan id (or a fresh UUID) disambiguates the new one.
func (w *Writer) Write(report ForensicReport) (string, error) {
	data, err := w.Marshal(report)
	if err != nil {
		return "", pdferrors.Wrap(pdferrors.ErrorTypeIO, "report rejected", err).WithFile(report.FilePath)
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot create report directory", err).WithFile(report.FilePath)
	}

	id := report.ScanID
	if id == "" {
		id = uuid.NewString()
	}
	candidates := []string{
		filepath.Join(w.dir, FileName(report.FileName)),
		filepath.Join(w.dir, AlternateFileName(report.FileName, id)),
	}

	path, err := writeFileExclusive(candidates, data)
	if err != nil {
		return "", pdferrors.Wrap(pdferrors.ErrorTypeIO, "cannot write report", err).WithFile(report.FilePath)
	}

	return path, nil
}

// writeFileExclusive writes data to a temporary file in the same directory
// and hard-links it to the first candidate that does not exist yet. Readers
// never observe a half-written report and an existing file is never
// replaced.
func writeFileExclusive(candidates []string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(candidates[0]), ".report-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return "", err
	}

	for _, path := range candidates {
		err := os.Link(tmpName, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrReportExists, candidates[len(candidates)-1])
}
