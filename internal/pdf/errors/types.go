package errors

import (
	"fmt"
	"time"
)

// PDFError represents a failure inside one step of a forensic scan, with
// enough context to decide whether the scan can continue
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"file_path,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of scan failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeDocumentOpen: the container could not be opened at all
	ErrorTypeDocumentOpen
	// ErrorTypePageDecode: a single page could not be decoded
	ErrorTypePageDecode
	// ErrorTypeStructuralParse: the structural dump collaborator failed
	ErrorTypeStructuralParse
	// ErrorTypeExtraction: a signal extractor could not produce counts
	ErrorTypeExtraction
	// ErrorTypeIO: saving, moving or report writing failed
	ErrorTypeIO
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is matches the type sentinels below, e.g. errors.Is(err, ErrIO)
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeDocumentOpen:
		return "DOCUMENT_OPEN"
	case ErrorTypePageDecode:
		return "PAGE_DECODE"
	case ErrorTypeStructuralParse:
		return "STRUCTURAL_PARSE"
	case ErrorTypeExtraction:
		return "EXTRACTION"
	case ErrorTypeIO:
		return "IO"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether the scan continues after an error of this type.
// Only IO failures on the primary artifact abort an operation, and that
// decision belongs to the caller.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeDocumentOpen, ErrorTypePageDecode, ErrorTypeStructuralParse, ErrorTypeExtraction:
		return true
	default:
		return false
	}
}

// New creates a new PDFError
func New(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Wrap wraps a standard error as a PDFError
func Wrap(errorType ErrorType, message string, err error) *PDFError {
	e := New(errorType, message)
	e.Err = err
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// Sentinels for errors.Is checks
var (
	ErrDocumentOpen    = &PDFError{Type: ErrorTypeDocumentOpen}
	ErrPageDecode      = &PDFError{Type: ErrorTypePageDecode}
	ErrStructuralParse = &PDFError{Type: ErrorTypeStructuralParse}
	ErrExtraction      = &PDFError{Type: ErrorTypeExtraction}
	ErrIO              = &PDFError{Type: ErrorTypeIO}
)
