package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-forensics/internal/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the upload and batch-scan HTTP server",
		Long: `Start an HTTP server with POST /upload, POST /batch-scan, GET /custody
and GET /healthz. The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, cfg, logger, err := newService(cmd, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.NewServer(server.Config{
		ListenAddr: cfg.Address(),
		StaticDir:  cfg.StaticDir,
		Logger:     logger,
	}, svc)
	httpServer := srv.HTTPServer()

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting HTTP server",
		"address", ln.Addr().String(),
		"intake_dir", cfg.IntakeDir,
		"quarantine_dir", cfg.QuarantineDir,
		"report_dir", cfg.ReportDir)

	return serveHTTP(ctx, httpServer, ln, logger)
}

// serveHTTP serves on ln until ctx is done, then shuts down gracefully
func serveHTTP(ctx context.Context, httpServer *http.Server, ln net.Listener, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
