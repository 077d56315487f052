// Package disposition moves flagged files out of the intake area.
package disposition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
)

// ErrDestinationExists is returned instead of overwriting a quarantined file
var ErrDestinationExists = errors.New("quarantine destination already exists")

// Controller relocates files into the quarantine directory
type Controller struct {
	dir    string
	logger *slog.Logger
}

// NewController creates a controller for the quarantine directory dir
func NewController(dir string, logger *slog.Logger) (*Controller, error) {
	if dir == "" {
		return nil, fmt.Errorf("quarantine directory cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		dir:    dir,
		logger: logger.With("component", "disposition"),
	}, nil
}

// Dir returns the quarantine directory
func (c *Controller) Dir() string {
	return c.dir
}

// Quarantine moves the file at path into the quarantine directory under
// the same base name and returns the new path. It never overwrites: an
// existing destination is reported as ErrDestinationExists and the source
// stays where it was.
func (c *Controller) Quarantine(path string) (string, error) {
	dest := filepath.Join(c.dir, filepath.Base(path))

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", c.ioError("cannot create quarantine directory", path, err)
	}

	if err := moveNoReplace(path, dest); err != nil {
		if errors.Is(err, ErrDestinationExists) {
			return "", c.ioError("refusing to overwrite", path, err)
		}
		return "", c.ioError("cannot move file to quarantine", path, err)
	}

	c.logger.Info("file quarantined", "source", path, "destination", dest)
	return dest, nil
}

func (c *Controller) ioError(message, path string, err error) error {
	c.logger.Error("quarantine failed", "path", path, "reason", message, "error", err)
	return pdferrors.Wrap(pdferrors.ErrorTypeIO, message, err).WithFile(path)
}

// moveNoReplace moves src to dest and fails with ErrDestinationExists when
// dest exists, including one created concurrently. A hard link claims dest
// atomically; filesystems without hard links, or a dest on another device,
// fall back to an exclusive copy.
func moveNoReplace(src, dest string) error {
	err := os.Link(src, dest)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			os.Remove(dest)
			return err
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	case errors.Is(err, fs.ErrNotExist):
		return err
	}
	return moveAcrossDevices(src, dest)
}

// moveAcrossDevices copies src to dest, which must not exist, then removes src
func moveAcrossDevices(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}

	in.Close()
	return os.Remove(src)
}
