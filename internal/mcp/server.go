package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/custody"
	"github.com/a3tai/pdf-forensics/internal/descriptions"
	"github.com/a3tai/pdf-forensics/internal/forensics"
)

const defaultCustodyLimit = 20

// Forensics is the part of the intake service exposed as MCP tools
type Forensics interface {
	ScanFile(ctx context.Context, path string) (*forensics.Outcome, error)
	BatchScan(ctx context.Context) (*forensics.BatchResult, error)
	Custody(ctx context.Context, limit int) ([]custody.Entry, error)
	IntakeDir() string
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	svc       Forensics
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc Forensics, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("forensics service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		svc:       svc,
		mcpServer: mcpServer,
		logger:    logger.With("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	scanTool := mcp.NewTool(
		descriptions.ForensicScanName,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ForensicScanName)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file, absolute or relative to the intake directory"),
		),
	)
	s.mcpServer.AddTool(scanTool, s.handleForensicScan)

	batchTool := mcp.NewTool(
		descriptions.BatchScanName,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.BatchScanName)),
	)
	s.mcpServer.AddTool(batchTool, s.handleBatchScan)

	custodyTool := mcp.NewTool(
		descriptions.CustodyLogName,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.CustodyLogName)),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of entries (default %d)", defaultCustodyLimit)),
		),
	)
	s.mcpServer.AddTool(custodyTool, s.handleCustodyLog)
}

// Handler functions
func (s *Server) handleForensicScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.svc.ScanFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := withJSON(s.formatOutcome(outcome), outcome)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleBatchScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batch, err := s.svc.BatchScan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := withJSON(s.formatBatch(batch), batch.Entries)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleCustodyLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultCustodyLimit)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be a positive integer"), nil
	}

	entries, err := s.svc.Custody(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := withJSON(formatCustody(entries), entries)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// Format helpers

func withJSON(summary string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return summary + "\n" + string(data), nil
}

func (s *Server) formatOutcome(o *forensics.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Forensic scan of %s\n", o.Target.Name)
	fmt.Fprintf(&b, "Verdict: %s\n", o.Verdict)
	fmt.Fprintf(&b, "SHA-256: %s\n", o.Target.SHA256)
	fmt.Fprintf(&b, "Pages: %d, text blocks: %d, suspicious blocks: %d\n",
		o.Signals.TotalPages, o.Signals.TotalBlocks, o.Signals.SuspiciousBlocks)
	fmt.Fprintf(&b, "Hex blocks: %d, font/compression pages: %d\n",
		o.Signals.SuspiciousHexBlocks, o.Signals.SuspiciousFontReferences)

	if o.DocumentError != "" {
		fmt.Fprintf(&b, "Document error: %s\n", o.DocumentError)
	}
	if o.ExtractionError != "" {
		fmt.Fprintf(&b, "Extraction failed, counts are incomplete: %s\n", o.ExtractionError)
	}
	if o.Threat.Flagged {
		fmt.Fprintf(&b, "Active content: %s\n", strings.Join(o.Threat.Keywords, ", "))
	}
	if o.DateNote != "" {
		fmt.Fprintf(&b, "Date note: %s\n", o.DateNote)
	}

	switch {
	case o.Quarantined:
		fmt.Fprintf(&b, "Quarantined to %s\n", o.QuarantinePath)
	case o.QuarantineRecommended:
		b.WriteString("Quarantine recommended but the file was not moved\n")
	}

	if o.ReportPath != "" {
		fmt.Fprintf(&b, "Report: %s\n", o.ReportPath)
	}
	for _, stepErr := range o.StepErrors {
		fmt.Fprintf(&b, "Step failed: %s\n", stepErr)
	}

	return b.String()
}

func (s *Server) formatBatch(batch *forensics.BatchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch scan of %s: %d files\n", s.svc.IntakeDir(), len(batch.Entries))
	for i, outcome := range batch.Outcomes {
		fmt.Fprintf(&b, "%d. %s: %s (%d suspicious blocks)", i+1,
			outcome.Target.Name, outcome.Verdict, outcome.Signals.SuspiciousBlocks)
		if outcome.Quarantined {
			b.WriteString(", quarantined")
		}
		b.WriteString("\n")
	}
	for _, failure := range batch.Failures {
		fmt.Fprintf(&b, "Skipped %s: %s\n", failure.FileName, failure.Error)
	}
	if batch.CSVPath != "" {
		fmt.Fprintf(&b, "CSV: %s\n", batch.CSVPath)
	}
	if batch.CSVError != nil {
		fmt.Fprintf(&b, "CSV not written: %s\n", batch.CSVError)
	}

	return b.String()
}

func formatCustody(entries []custody.Entry) string {
	if len(entries) == 0 {
		return "Custody log is empty\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Custody log (%d entries, newest first)\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s  %s  %s", e.ScannedAt.UTC().Format("2006-01-02 15:04:05"), e.FileName, e.Verdict, e.FileSHA256)
		if e.Quarantined {
			b.WriteString("  quarantined")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Run serves MCP over stdin/stdout until the input ends or ctx is done
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server on stdio", "intake_dir", s.svc.IntakeDir())

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, in, out); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
