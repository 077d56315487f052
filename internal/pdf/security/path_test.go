package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathValidator(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name      string
		dir       string
		wantError bool
	}{
		{
			name:      "valid directory",
			dir:       tempDir,
			wantError: false,
		},
		{
			name:      "empty directory",
			dir:       "",
			wantError: true,
		},
		{
			name:      "relative directory",
			dir:       "uploads",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewPathValidator(tt.dir)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !filepath.IsAbs(validator.GetConfiguredDirectory()) {
				t.Errorf("GetConfiguredDirectory() = %s, want absolute path", validator.GetConfiguredDirectory())
			}
		})
	}
}

func TestPathValidator_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	outsideDir := t.TempDir()

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"file inside directory", filepath.Join(tempDir, "a.pdf"), false},
		{"nested file", filepath.Join(tempDir, "sub", "a.pdf"), false},
		{"directory itself", tempDir, true},
		{"traversal", filepath.Join(tempDir, "..", "a.pdf"), true},
		{"other directory", filepath.Join(outsideDir, "a.pdf"), true},
		{"prefix sibling", tempDir + "-evil/a.pdf", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("ValidatePath(%s) expected error", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("ValidatePath(%s) unexpected error: %v", tt.path, err)
			}
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	tempDir := t.TempDir()
	outsideDir := t.TempDir()

	target := filepath.Join(outsideDir, "secret.pdf")
	if err := os.WriteFile(target, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	link := filepath.Join(tempDir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := validator.ValidatePath(link); err == nil {
		t.Error("ValidatePath() should reject a symlink pointing outside the directory")
	}
}

func TestPathValidator_ResolveUpload(t *testing.T) {
	tempDir := t.TempDir()
	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		input     string
		want      string
		wantError bool
	}{
		{"plain name", "report.pdf", filepath.Join(tempDir, "report.pdf"), false},
		{"directory components dropped", "../../etc/report.pdf", filepath.Join(tempDir, "report.pdf"), false},
		{"windows path", `C:\Users\x\report.pdf`, filepath.Join(tempDir, "report.pdf"), false},
		{"null bytes stripped", "rep\x00ort.pdf", filepath.Join(tempDir, "report.pdf"), false},
		{"empty", "", "", true},
		{"dot dot", "..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ResolveUpload(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("ResolveUpload(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveUpload(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ResolveUpload(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathValidator_ListFiles(t *testing.T) {
	tempDir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.pdf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(tempDir, "sub"), 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	validator, err := NewPathValidator(tempDir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	files, err := validator.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles() error: %v", err)
	}

	want := []string{
		filepath.Join(tempDir, "a.pdf"),
		filepath.Join(tempDir, "b.pdf"),
		filepath.Join(tempDir, "notes.txt"),
	}
	if len(files) != len(want) {
		t.Fatalf("ListFiles() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("ListFiles()[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}
