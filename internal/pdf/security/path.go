package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file paths to a single directory (the intake area)
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	absDir, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathValidator{
		configuredDirectory: filepath.Clean(absDir),
	}, nil
}

// ValidatePath checks if a path is within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	isWithin, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	if !isWithin {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}

	return nil
}

// IsPathWithinDirectory checks if a path is strictly inside the configured directory.
// Symlinks are resolved on both sides when they exist.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	}

	realDir := v.configuredDirectory
	if resolved, err := filepath.EvalSymlinks(realDir); err == nil {
		realDir = resolved
	}

	pathOk := isStrictlyWithin(cleanPath, v.configuredDirectory) || isStrictlyWithin(cleanPath, realDir)
	realPathOk := isStrictlyWithin(realPath, v.configuredDirectory) || isStrictlyWithin(realPath, realDir)

	return pathOk && realPathOk, nil
}

func isStrictlyWithin(path, dir string) bool {
	dirWithSep := dir
	if !strings.HasSuffix(dirWithSep, string(filepath.Separator)) {
		dirWithSep += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dirWithSep)
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// ResolveUpload turns a client-supplied file name into a path inside the
// configured directory. Directory components are discarded.
func (v *PathValidator) ResolveUpload(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	// Browsers on Windows may send full paths
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)

	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name: %q", name)
	}

	target := filepath.Join(v.configuredDirectory, base)
	if err := v.ValidatePath(target); err != nil {
		return "", err
	}

	return target, nil
}

// ListFiles returns the regular files directly inside the configured directory,
// sorted by name
func (v *PathValidator) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(v.configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", v.configuredDirectory, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(v.configuredDirectory, entry.Name()))
	}

	return files, nil
}
