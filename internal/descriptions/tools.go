package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	ForensicScanName = "pdf_forensic_scan"
	BatchScanName    = "pdf_batch_scan"
	CustodyLogName   = "pdf_custody_log"
)

const (
	ForensicScanDescription = `Scan one PDF in the intake directory for signs of tampering and obfuscation.

**When to use:** A document arrived and needs a tamper verdict before anyone relies on it.

**What it checks:**
• Hex-encoded text blocks such as <48656C6C6F> in page text
• Pages whose text mentions /Font or /FlateDecode
• Active-content keywords (/JavaScript, /AA, /OpenAction, /Launch, /EmbeddedFile, /URI) in the document structure
• Creation and modification dates that differ or lie in the future

**Side effects:** Writes <name>_forensic_report.json to the report directory, appends a chain-of-custody entry and moves the file to quarantine when the suspicious block threshold is reached.

**Examples:**
• "Scan invoice-2024-001.pdf and tell me whether it was modified"
• "Check contract.pdf for embedded JavaScript before I open it"`

	BatchScanDescription = `Scan every file in the intake directory, one after another.

**When to use:** Triage of a whole drop folder.

**Output:** One entry per file with its suspicious block count, plus the path of the batch CSV. Flagged files are quarantined exactly as with pdf_forensic_scan; files that are not PDFs are reported as corrupt documents with zero signal.`

	CustodyLogDescription = `List recent chain-of-custody entries, newest first.

**When to use:** Answer "when was this file scanned, what was its hash and where did it go?"

**Parameters:** limit (optional) caps the number of entries.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ForensicScanName: ForensicScanDescription,
	BatchScanName:    BatchScanDescription,
	CustodyLogName:   CustodyLogDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
