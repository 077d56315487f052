package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/forensics"
	"github.com/a3tai/pdf-forensics/internal/report"
)

// NewBatchCmd creates the batch command
func NewBatchCmd() *cobra.Command {
	var markdownPath string

	cmd := &cobra.Command{
		Use:   "batch [dir]",
		Short: "Scan every file in the intake directory",
		Long: `Scan every regular file in the intake directory (or dir), quarantine
flagged files and write the batch CSV. --markdown adds a summary; use "-"
for stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, _, err := newService(cmd, func(cfg *config.Config) error {
				if len(args) == 0 {
					return nil
				}
				dir, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if filepath.Clean(dir) == filepath.Clean(cfg.QuarantineDir) {
					return fmt.Errorf("batch directory cannot be the quarantine directory")
				}
				cfg.IntakeDir = dir
				return nil
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			// A cancelled batch still reports the files it finished
			batch, batchErr := svc.BatchScan(cmd.Context())
			if batch == nil {
				return batchErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d files in %s\n", len(batch.Entries), cfg.IntakeDir)
			for _, row := range batch.Rows {
				fmt.Fprintf(out, "  %-40s %-16s suspicious=%d quarantined=%t\n",
					row.FileName, row.Verdict, row.Signals.SuspiciousBlocks, row.Quarantined)
			}
			for _, failure := range batch.Failures {
				fmt.Fprintf(out, "  %-40s skipped: %s\n", failure.FileName, failure.Error)
			}
			if batch.CSVPath != "" {
				fmt.Fprintf(out, "CSV written to %s\n", batch.CSVPath)
			}

			if markdownPath != "" {
				if err := writeMarkdown(cmd, markdownPath, batch.Rows); err != nil {
					return err
				}
			}

			return errors.Join(batchErr, csvError(batch))
		},
	}

	cmd.Flags().StringVar(&markdownPath, "markdown", "", "Write a Markdown summary to this file (\"-\" for stdout)")
	return cmd
}

func csvError(batch *forensics.BatchResult) error {
	if batch.CSVError == nil {
		return nil
	}
	return batch.CSVError
}

func writeMarkdown(cmd *cobra.Command, path string, rows []report.Row) error {
	if path == "-" {
		return report.WriteMarkdownSummary(cmd.OutOrStdout(), rows, time.Now())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create markdown summary: %w", err)
	}
	if err := report.WriteMarkdownSummary(f, rows, time.Now()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write markdown summary: %w", err)
	}
	return f.Close()
}
