package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/forensics"
	"github.com/a3tai/pdf-forensics/internal/logging"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf-forensics",
		Short: "Forensic tamper and obfuscation scanner for PDF files",
		Long: `pdf-forensics inspects PDF files for signs of tampering and obfuscation:
hex-encoded text blocks, font and compression references in page text,
active-content keywords in the document structure and inconsistent dates.

Every scan writes a JSON forensic report and a chain-of-custody entry.
Files that reach the suspicious block threshold are moved to quarantine.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewBatchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from the command's flags and
// builds a logger that writes to the command's stderr
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	cfg.Version = getVersion()

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	if cfg.IsDebug() {
		logger.Debug("configuration loaded", "config", cfg.String())
	}
	return cfg, logger, nil
}

// newService loads the configuration and builds the intake service.
// mutate may adjust the configuration first.
func newService(cmd *cobra.Command, mutate func(*config.Config) error) (*forensics.Service, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	if mutate != nil {
		if err := mutate(cfg); err != nil {
			return nil, nil, nil, err
		}
	}

	svc, err := forensics.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create forensic service: %w", err)
	}
	return svc, cfg, logger, nil
}
