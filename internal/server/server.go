// Package server is the HTTP boundary of the forensic scanner.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/a3tai/pdf-forensics/internal/custody"
	"github.com/a3tai/pdf-forensics/internal/forensics"
	"github.com/a3tai/pdf-forensics/internal/pdf"
)

const (
	// RequestIDHeader carries the per-request id in both directions
	RequestIDHeader = "X-Request-ID"

	// uploadField is the multipart field holding the PDF
	uploadField = "file"

	// multipartOverhead allows for boundaries and part headers on top of
	// the file size limit
	multipartOverhead = 1 << 20

	defaultCustodyLimit = 50
)

var errNoFilePart = errors.New("no file part")

// Forensics is the part of the intake service the HTTP surface needs
type Forensics interface {
	Upload(ctx context.Context, filename string, content io.Reader) (*forensics.Outcome, error)
	BatchScan(ctx context.Context) (*forensics.BatchResult, error)
	Custody(ctx context.Context, limit int) ([]custody.Entry, error)
	MaxFileSize() int64
}

// Config configures the HTTP server
type Config struct {
	ListenAddr string
	StaticDir  string // empty disables GET /
	Logger     *slog.Logger
}

// Server routes HTTP requests to the intake service
type Server struct {
	cfg    Config
	svc    Forensics
	router chi.Router
	logger *slog.Logger
}

// NewServer creates a Server backed by svc
func NewServer(cfg Config, svc Forensics) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		router: chi.NewRouter(),
		logger: logger.With("component", "http"),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.requestIDMiddleware)
	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/upload", s.optionsHandler("POST"))
	r.Options("/batch-scan", s.optionsHandler("POST"))
	r.Options("/custody", s.optionsHandler("GET"))

	r.Post("/upload", s.handleUpload)
	r.Post("/batch-scan", s.handleBatchScan)
	r.Get("/custody", s.handleCustody)
	r.Get("/healthz", s.handleHealth)

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Info("http_request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads and batch scans can run long
		WriteTimeout: 0,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- HTTP handlers ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", RequestID(r.Context()))

	if limit := s.svc.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	part, err := filePart(r)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		if errors.Is(err, errNoFilePart) {
			writeError(w, http.StatusBadRequest, "No file part")
			return
		}
		logger.Warn("reading upload", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()

	if part.FileName() == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}

	outcome, err := s.svc.Upload(r.Context(), part.FileName(), part)
	switch {
	case err == nil:
	case errors.Is(err, forensics.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case isTooLarge(err):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	default:
		logger.Error("upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	logger.Info("upload scanned",
		"file", outcome.Target.Name,
		"verdict", outcome.Verdict,
		"quarantined", outcome.Quarantined)
	writeJSON(w, http.StatusOK, outcome)
}

// filePart returns the multipart part named "file" without buffering
// the whole request
func filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("expected multipart/form-data")
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		part.Close()
	}
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr) || errors.Is(err, pdf.ErrFileTooLarge)
}

func (s *Server) handleBatchScan(w http.ResponseWriter, r *http.Request) {
	batch, err := s.svc.BatchScan(r.Context())
	if err != nil {
		s.logger.Error("batch scan failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batch.Entries)
}

func (s *Server) handleCustody(w http.ResponseWriter, r *http.Request) {
	limit := defaultCustodyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.svc.Custody(r.Context(), limit)
	switch {
	case errors.Is(err, forensics.ErrLedgerDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("listing custody entries", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
