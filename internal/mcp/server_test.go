package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/forensics"
	"github.com/a3tai/pdf-forensics/internal/logging"
	"github.com/a3tai/pdf-forensics/internal/pdf/pdftest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.IntakeDir = filepath.Join(root, "uploads")
	cfg.QuarantineDir = filepath.Join(root, "quarantine")
	cfg.ReportDir = filepath.Join(root, "reports")
	cfg.CSVPath = filepath.Join(root, "scan_results.csv")
	cfg.LedgerPath = filepath.Join(root, "custody.db")
	cfg.ServerName = "test-server"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	svc, err := forensics.NewFromConfig(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	server, err := NewServer(cfg, svc, logging.Discard())
	require.NoError(t, err)
	return server
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	svc, err := forensics.NewFromConfig(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	tests := []struct {
		name        string
		config      *config.Config
		svc         Forensics
		expectError bool
	}{
		{"valid", cfg, svc, false},
		{"nil config", nil, svc, true},
		{"nil service", cfg, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config, tt.svc, nil)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.config, server.config)
			assert.NotNil(t, server.mcpServer)
		})
	}
}

func TestServer_ToolsRegistered(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	resp := server.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"pdf_forensic_scan", "pdf_batch_scan", "pdf_custody_log"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}

func TestServer_HandleForensicScan(t *testing.T) {
	cfg := testConfig(t)
	server := newTestServer(t, cfg)
	pdftest.Write(t, cfg.IntakeDir, "letter.pdf", pdftest.Document{
		Pages: []pdftest.Page{{Lines: []string{"Dear reader", "<0011223344556677>"}}},
	})

	result, err := server.handleForensicScan(context.Background(), callRequest(map[string]interface{}{
		"path": "letter.pdf",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Forensic scan of letter.pdf")
	assert.Contains(t, text, "Verdict: LIKELY CLEAN")
	assert.Contains(t, text, "suspicious blocks: 1")
	assert.Contains(t, text, filepath.Join(cfg.ReportDir, "letter_forensic_report.json"))

	// The JSON part follows the summary
	jsonStart := strings.Index(text, "{")
	require.Positive(t, jsonStart)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text[jsonStart:]), &decoded))
	assert.Equal(t, "LIKELY CLEAN", decoded["verdict"])
}

func TestServer_HandleForensicScan_Errors(t *testing.T) {
	cfg := testConfig(t)
	server := newTestServer(t, cfg)
	outside := pdftest.Write(t, t.TempDir(), "outside.pdf", pdftest.Document{
		Pages: []pdftest.Page{{Lines: []string{"x"}}},
	})

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{"missing path", map[string]interface{}{}, "path"},
		{"outside intake", map[string]interface{}{"path": outside}, "outside the intake directory"},
		{"missing file", map[string]interface{}{"path": "nope.pdf"}, "nope.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handleForensicScan(context.Background(), callRequest(tt.args))
			require.NoError(t, err, "tool failures are reported in the result")
			require.NotNil(t, result)
			assert.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.wantMsg)
		})
	}
}

func TestServer_HandleBatchScan(t *testing.T) {
	cfg := testConfig(t)
	cfg.BlockThreshold = 1
	server := newTestServer(t, cfg)

	pdftest.Write(t, cfg.IntakeDir, "a.pdf", pdftest.Document{Pages: []pdftest.Page{{Lines: []string{"plain"}}}})
	pdftest.Write(t, cfg.IntakeDir, "b.pdf", pdftest.Document{Pages: []pdftest.Page{{Lines: []string{"a < b"}}}})

	result, err := server.handleBatchScan(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "2 files")
	assert.Contains(t, text, "1. a.pdf: LIKELY CLEAN (0 suspicious blocks)\n")
	assert.Contains(t, text, "2. b.pdf: LIKELY CLEAN (1 suspicious blocks), quarantined\n")
	assert.Contains(t, text, `"filename": "b.pdf"`)
	assert.Contains(t, text, "CSV: "+cfg.CSVPath)
}

func TestServer_HandleCustodyLog(t *testing.T) {
	cfg := testConfig(t)
	server := newTestServer(t, cfg)

	result, err := server.handleCustodyLog(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Custody log is empty")

	for _, name := range []string{"one.pdf", "two.pdf", "three.pdf"} {
		pdftest.Write(t, cfg.IntakeDir, name, pdftest.Document{Pages: []pdftest.Page{{Lines: []string{name}}}})
		_, err := server.handleForensicScan(context.Background(), callRequest(map[string]interface{}{"path": name}))
		require.NoError(t, err)
	}

	result, err = server.handleCustodyLog(context.Background(), callRequest(map[string]interface{}{"limit": 2}))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Custody log (2 entries, newest first)")
	assert.Contains(t, text, "three.pdf")
	assert.NotContains(t, text, "one.pdf")

	result, err = server.handleCustodyLog(context.Background(), callRequest(map[string]interface{}{"limit": 0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandleCustodyLog_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.LedgerPath = ""
	server := newTestServer(t, cfg)

	result, err := server.handleCustodyLog(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), forensics.ErrLedgerDisabled.Error())
}

// Helper function to extract text from MCP result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		// Handle pointer to TextContent as well
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
