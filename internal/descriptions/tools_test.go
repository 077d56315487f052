package descriptions

import (
	"strings"
	"testing"
)

func TestGetToolDescription(t *testing.T) {
	for _, name := range GetAllToolNames() {
		if desc := GetToolDescription(name); desc == "" || desc == "Tool description not available" {
			t.Errorf("missing description for %s", name)
		}
	}

	if got := GetToolDescription("pdf_read_file"); got != "Tool description not available" {
		t.Errorf("unknown tool returned %q", got)
	}
}

func TestGetAllToolNames(t *testing.T) {
	got := strings.Join(GetAllToolNames(), ",")
	want := "pdf_batch_scan,pdf_custody_log,pdf_forensic_scan"
	if got != want {
		t.Errorf("GetAllToolNames() = %s, want %s", got, want)
	}
}
