package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyName is returned for uploads without a file name
	ErrEmptyName = errors.New("file name is empty")
	// ErrNotPDF is returned for names without a .pdf extension
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrFileTooLarge is returned when content exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")
)

// Validator checks intake candidates before anything is written to disk
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified size limit
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// MaxFileSize returns the configured size limit in bytes
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// ValidateName checks a client-supplied file name
func (v *Validator) ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	if !HasPDFExtension(name) {
		return fmt.Errorf("%w: %s", ErrNotPDF, name)
	}

	return nil
}

// ValidateSize checks a byte count against the size limit
func (v *Validator) ValidateSize(size int64) error {
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrFileTooLarge, size, v.maxFileSize)
	}
	return nil
}

// ValidateFileInfo performs basic validation on a file already on disk
// without opening it
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	return v.ValidateSize(fileInfo.Size())
}

// HasPDFExtension reports whether name ends in .pdf, ignoring case
func HasPDFExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// TrimPDFExtension strips a trailing .pdf, ignoring case
func TrimPDFExtension(name string) string {
	if HasPDFExtension(name) {
		return name[:len(name)-len(".pdf")]
	}
	return name
}
