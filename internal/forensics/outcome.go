package forensics

import (
	"encoding/json"

	"github.com/a3tai/pdf-forensics/internal/report"
	"github.com/a3tai/pdf-forensics/internal/scan"
)

// Steps that can fail after a scan without invalidating its result
const (
	StepReport     = "report"
	StepQuarantine = "quarantine"
	StepLedger     = "ledger"
	StepCSV        = "csv"
)

// StepError is a failure in one post-scan step
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the step and the error text
func (e *StepError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Step  string `json:"step"`
		Error string `json:"error"`
	}{e.Step, e.Err.Error()})
}

// Outcome is a scan result together with what happened to its artifacts.
// The embedded result is serialized inline.
type Outcome struct {
	ScanID string `json:"scan_id"`
	*scan.Result
	ReportPath     string       `json:"report_path,omitempty"`
	Quarantined    bool         `json:"quarantined"`
	QuarantinePath string       `json:"quarantine_path,omitempty"`
	StepErrors     []*StepError `json:"step_errors"`
}

func (o *Outcome) addStepError(step string, err error) {
	o.StepErrors = append(o.StepErrors, &StepError{Step: step, Err: err})
}

// StepError returns the failure of step, or nil
func (o *Outcome) StepError(step string) *StepError {
	for _, e := range o.StepErrors {
		if e.Step == step {
			return e
		}
	}
	return nil
}

// BatchEntry is one element of the batch-scan response
type BatchEntry struct {
	FileName         string `json:"filename"`
	SuspiciousBlocks int    `json:"suspicious_blocks"`
}

// FileFailure is a file whose bytes could not be read during a batch
type FileFailure struct {
	FileName string `json:"filename"`
	Error    string `json:"error"`
}

// BatchResult collects a batch run
type BatchResult struct {
	Entries  []BatchEntry  `json:"entries"`
	Outcomes []*Outcome    `json:"outcomes"`
	Failures []FileFailure `json:"failures"`
	Rows     []report.Row  `json:"-"`
	CSVPath  string        `json:"csv_path,omitempty"`
	CSVError *StepError    `json:"csv_error,omitempty"`
}
