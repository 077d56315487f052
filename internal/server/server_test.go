package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-forensics/internal/config"
	"github.com/a3tai/pdf-forensics/internal/custody"
	"github.com/a3tai/pdf-forensics/internal/forensics"
	"github.com/a3tai/pdf-forensics/internal/logging"
	"github.com/a3tai/pdf-forensics/internal/pdf/pdftest"
	"github.com/a3tai/pdf-forensics/internal/server"
)

type fixture struct {
	srv    *server.Server
	cfg    *config.Config
	static string
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) fixture {
	t.Helper()

	root := t.TempDir()
	static := filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(static, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>upload</h1>"), 0o600))

	cfg := config.DefaultConfig()
	cfg.IntakeDir = filepath.Join(root, "uploads")
	cfg.QuarantineDir = filepath.Join(root, "quarantine")
	cfg.ReportDir = filepath.Join(root, "reports")
	cfg.CSVPath = filepath.Join(root, "scan_results.csv")
	cfg.LedgerPath = filepath.Join(root, "custody.db")
	cfg.StaticDir = static
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	svc, err := forensics.NewFromConfig(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return fixture{
		srv:    server.NewServer(server.Config{ListenAddr: ":0", StaticDir: cfg.StaticDir, Logger: logging.Discard()}, svc),
		cfg:    cfg,
		static: static,
	}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("comment", "no file here"))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func upload(t *testing.T, h http.Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func simplePDF(lines ...string) []byte {
	return pdftest.Build(pdftest.Document{Pages: []pdftest.Page{{Lines: lines}}})
}

func TestServer_UploadClean(t *testing.T) {
	f := newFixture(t, nil)

	rec := upload(t, f.srv, "file", "memo.pdf", simplePDF("hello", "world"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "LIKELY CLEAN", body["verdict"])
	assert.Equal(t, false, body["quarantined"])
	assert.NotEmpty(t, body["scan_id"])
	assert.Equal(t, filepath.Join(f.cfg.ReportDir, "memo_forensic_report.json"), body["report_path"])
	assert.Equal(t, []any{}, body["step_errors"])

	signals, ok := body["signals"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), signals["total_pages"])
	assert.Equal(t, float64(2), signals["total_blocks"])
}

func TestServer_UploadQuarantines(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.BlockThreshold = 2 })

	rec := upload(t, f.srv, "file", "bad.pdf", simplePDF("1 < 2", "3 > 2"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, true, body["quarantined"])
	assert.FileExists(t, filepath.Join(f.cfg.QuarantineDir, "bad.pdf"))
	assert.NoFileExists(t, filepath.Join(f.cfg.IntakeDir, "bad.pdf"))
}

func TestServer_UploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		wantCode int
		wantMsg  string
	}{
		{"missing file part", "", "", http.StatusBadRequest, "No file part"},
		{"wrong field name", "document", "a.pdf", http.StatusBadRequest, "No file part"},
		{"empty file name", "file", "", http.StatusBadRequest, "No selected file"},
		{"not a pdf", "file", "script.exe", http.StatusBadRequest, "not a PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			rec := upload(t, f.srv, tt.field, tt.filename, []byte("%PDF-1.4 fake"))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]string
			decodeJSON(t, rec, &body)
			assert.Contains(t, body["error"], tt.wantMsg)

			entries, err := os.ReadDir(f.cfg.IntakeDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "rejected uploads must not touch the intake directory")
		})
	}
}

func TestServer_UploadNotMultipart(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UploadTooLarge(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.MaxFileSize = 100 })

	rec := upload(t, f.srv, "file", "big.pdf", simplePDF("this document is larger than one hundred bytes"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(f.cfg.IntakeDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServer_BatchScan(t *testing.T) {
	f := newFixture(t, nil)
	pdftest.WriteBytes(t, f.cfg.IntakeDir, "a.pdf", simplePDF("x"))
	pdftest.WriteBytes(t, f.cfg.IntakeDir, "b.pdf", simplePDF("<DEADBEEF>", "plain"))

	rec := do(t, f.srv, http.MethodPost, "/batch-scan")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entries []forensics.BatchEntry
	decodeJSON(t, rec, &entries)
	assert.Equal(t, []forensics.BatchEntry{
		{FileName: "a.pdf", SuspiciousBlocks: 0},
		{FileName: "b.pdf", SuspiciousBlocks: 1},
	}, entries)
	assert.FileExists(t, f.cfg.CSVPath)
}

func TestServer_BatchScanEmpty(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, f.srv, http.MethodPost, "/batch-scan")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestServer_Custody(t *testing.T) {
	f := newFixture(t, nil)

	for _, name := range []string{"one.pdf", "two.pdf"} {
		rec := upload(t, f.srv, "file", name, simplePDF("text"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, f.srv, http.MethodGet, "/custody?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []custody.Entry
	decodeJSON(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "two.pdf", entries[0].FileName)

	rec = do(t, f.srv, http.MethodGet, "/custody")
	decodeJSON(t, rec, &entries)
	assert.Len(t, entries, 2)
}

func TestServer_CustodyErrors(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, do(t, f.srv, http.MethodGet, "/custody?limit=zero").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, f.srv, http.MethodGet, "/custody?limit=0").Code)

	disabled := newFixture(t, func(cfg *config.Config) { cfg.LedgerPath = "" })
	assert.Equal(t, http.StatusNotFound, do(t, disabled.srv, http.MethodGet, "/custody").Code)
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, f.srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Static(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, f.srv, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>upload</h1>")

	rec = do(t, server.NewServer(server.Config{Logger: logging.Discard()}, nil), http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORSAndRequestID(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, f.srv, http.MethodGet, "/healthz")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Len(t, rec.Header().Get(server.RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(server.RequestIDHeader, "0b6f3c4e-8d0a-4c1f-9f55-6a3a8f3e2b11")
	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, "0b6f3c4e-8d0a-4c1f-9f55-6a3a8f3e2b11", rec.Header().Get(server.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(server.RequestIDHeader, "not-a-uuid\r\ninjected")
	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Header().Get(server.RequestIDHeader), "injected")

	rec = do(t, f.srv, http.MethodOptions, "/upload")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
}
