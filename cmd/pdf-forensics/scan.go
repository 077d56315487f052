package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/a3tai/pdf-forensics/internal/forensics"
)

// NewScanCmd creates the scan command
func NewScanCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <file>...",
		Short: "Scan files in place and write their forensic reports",
		Long: `Scan one or more files where they are. Each scan writes a forensic report
and a custody entry; files are never moved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, logger, err := newService(cmd, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			var (
				outcomes []*forensics.Outcome
				failed   []error
			)
			for _, path := range args {
				outcome, err := svc.Inspect(cmd.Context(), path)
				if err != nil {
					logger.Error("scan failed", "path", path, "error", err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				outcomes = append(outcomes, outcome)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(outcomes); err != nil {
					return err
				}
			} else {
				for _, outcome := range outcomes {
					printOutcome(out, outcome)
				}
			}

			return errors.Join(failed...)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full results as JSON")
	return cmd
}

func printOutcome(w io.Writer, o *forensics.Outcome) {
	fmt.Fprintf(w, "%s: %s\n", o.Target.Path, o.Verdict)
	fmt.Fprintf(w, "  sha256: %s\n", o.Target.SHA256)
	fmt.Fprintf(w, "  suspicious blocks: %d of %d, hex blocks: %d, font/compression pages: %d\n",
		o.Signals.SuspiciousBlocks, o.Signals.TotalBlocks,
		o.Signals.SuspiciousHexBlocks, o.Signals.SuspiciousFontReferences)
	if o.DocumentError != "" {
		fmt.Fprintf(w, "  document error: %s\n", o.DocumentError)
	}
	if o.ExtractionError != "" {
		fmt.Fprintf(w, "  extraction failed: %s\n", o.ExtractionError)
	}
	if o.Encrypted {
		fmt.Fprintf(w, "  encrypted\n")
	}
	if o.Threat.Flagged {
		fmt.Fprintf(w, "  active content: %v\n", o.Threat.Keywords)
	}
	if o.QuarantineRecommended {
		fmt.Fprintf(w, "  quarantine recommended\n")
	}
	if o.ReportPath != "" {
		fmt.Fprintf(w, "  report: %s\n", o.ReportPath)
	}
	for _, stepErr := range o.StepErrors {
		fmt.Fprintf(w, "  step failed: %s\n", stepErr)
	}
}
