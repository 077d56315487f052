package main

import (
	"github.com/spf13/cobra"

	"github.com/a3tai/pdf-forensics/internal/mcp"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the forensic tools over MCP on stdin/stdout",
		Long: `Serve pdf_forensic_scan, pdf_batch_scan and pdf_custody_log as MCP tools
over stdin/stdout. Logs go to stderr so they never mix with the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cfg, logger, err := newService(cmd, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			server, err := mcp.NewServer(cfg, svc, logger)
			if err != nil {
				return err
			}

			// The parent process controls our lifecycle through stdin
			return server.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
