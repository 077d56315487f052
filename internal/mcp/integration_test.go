package mcp

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestServerRunStdio_EndOfInput(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	done := make(chan error, 1)
	go func() {
		done <- server.Run(context.Background(), strings.NewReader(""), io.Discard)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Logf("Server stopped with: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not return at end of input")
	}
}

func TestServerRunStdio_ContextCancellation(t *testing.T) {
	server := newTestServer(t, testConfig(t))

	in, writer := io.Pipe()
	t.Cleanup(func() { writer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, in, io.Discard)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !strings.Contains(err.Error(), "context") {
			t.Errorf("Run() error = %v, expected context-related error", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not return after context cancellation")
	}
}
