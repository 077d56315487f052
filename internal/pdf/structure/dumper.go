// Package structure produces a textual dump of the object graph of a PDF.
// The dump feeds the active-content keyword check.
package structure

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sentinel dumps. Neither contains a PDF name, so neither can match a keyword.
const (
	SentinelNoStructure = "No structure analysis available"
	SentinelDumpFailed  = "Error analyzing PDF structure"
)

// Dumper renders the structure of the PDF at path as text. Implementations
// never fail past this boundary: problems collapse into one of the sentinels.
type Dumper interface {
	Dump(ctx context.Context, path string) string
}

// IsSentinel reports whether dump is one of the sentinel strings
func IsSentinel(dump string) bool {
	return dump == SentinelNoStructure || dump == SentinelDumpFailed
}

// PDFCPUDumper dumps every in-use object of the cross-reference table
type PDFCPUDumper struct {
	logger *slog.Logger
}

// NewPDFCPUDumper creates a dumper backed by pdfcpu
func NewPDFCPUDumper(logger *slog.Logger) *PDFCPUDumper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFCPUDumper{logger: logger.With("component", "structure")}
}

// Dump implements Dumper
func (d *PDFCPUDumper) Dump(ctx context.Context, path string) (dump string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("pdfcpu panicked while reading structure", "path", path, "panic", fmt.Sprint(r))
			dump = SentinelDumpFailed
		}
	}()

	if err := ctx.Err(); err != nil {
		return SentinelDumpFailed
	}

	file, err := os.Open(path)
	if err != nil {
		d.logger.Warn("cannot open file for structure dump", "path", path, "error", err)
		return SentinelDumpFailed
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(file, conf)
	if err != nil {
		d.logger.Warn("pdfcpu could not read structure", "path", path, "error", err)
		return SentinelDumpFailed
	}

	out := renderTable(pdfCtx)
	if strings.TrimSpace(out) == "" {
		return SentinelNoStructure
	}
	return out
}

func renderTable(pdfCtx *model.Context) string {
	numbers := make([]int, 0, len(pdfCtx.Table))
	for objNr := range pdfCtx.Table {
		numbers = append(numbers, objNr)
	}
	sort.Ints(numbers)

	var buf strings.Builder
	for _, objNr := range numbers {
		entry := pdfCtx.Table[objNr]
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}

		gen := 0
		if entry.Generation != nil {
			gen = *entry.Generation
		}
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", objNr, gen, entry.Object.PDFString())
	}

	return buf.String()
}

// CommandDumper runs an external tool, such as pdf-parser.py, and uses its
// standard output as the dump
type CommandDumper struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandDumper parses a command line like "python3 pdf-parser.py".
// The PDF path is appended as the last argument.
func NewCommandDumper(command string, logger *slog.Logger) (*CommandDumper, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("structure tool command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CommandDumper{
		name:   fields[0],
		args:   fields[1:],
		logger: logger.With("component", "structure", "tool", fields[0]),
	}, nil
}

// Dump implements Dumper
func (d *CommandDumper) Dump(ctx context.Context, path string) string {
	args := append(append([]string{}, d.args...), path)
	cmd := exec.CommandContext(ctx, d.name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		d.logger.Warn("structure tool failed", "path", path, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return SentinelDumpFailed
	}

	if strings.TrimSpace(stdout.String()) == "" {
		return SentinelNoStructure
	}
	return stdout.String()
}

// New picks the dumper for a configured tool command. An empty command
// selects the pdfcpu dumper.
func New(command string, logger *slog.Logger) (Dumper, error) {
	if strings.TrimSpace(command) == "" {
		return NewPDFCPUDumper(logger), nil
	}
	return NewCommandDumper(command, logger)
}
