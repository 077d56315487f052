package scan

// Verdict is derived from SignalCounts and never stored on its own
type Verdict string

const (
	VerdictClean    Verdict = "LIKELY CLEAN"
	VerdictTampered Verdict = "LIKELY TAMPERED"
)

// FindingType names the kind of anomaly a Finding records
type FindingType string

const (
	FindingHexBlock      FindingType = "hex_block"
	FindingFontReference FindingType = "font_or_compression_reference"
	FindingActiveContent FindingType = "active_content_keyword"
)

// Finding is one anomaly occurrence. Page is 1-based; document-level
// findings leave it at zero.
type Finding struct {
	Page    int         `json:"page,omitempty"`
	Type    FindingType `json:"type"`
	Count   int         `json:"count,omitempty"`
	Sample  []string    `json:"sample,omitempty"`
	Details string      `json:"details,omitempty"`
}

// SignalCounts are the integer signals a verdict is computed from
type SignalCounts struct {
	TotalPages               int `json:"total_pages"`
	TotalBlocks              int `json:"total_blocks"`
	SuspiciousBlocks         int `json:"suspicious_blocks"`
	SuspiciousHexBlocks      int `json:"suspicious_hex_blocks"`
	SuspiciousFontReferences int `json:"suspicious_font_references"`
}

// Default thresholds
const (
	DefaultHexThreshold   = 5
	DefaultFontThreshold  = 2
	DefaultBlockThreshold = 10
)

// Policy holds the thresholds. The verdict and the quarantine decision use
// different signals and are evaluated independently.
type Policy struct {
	HexThreshold   int
	FontThreshold  int
	BlockThreshold int
}

// DefaultPolicy returns the stock thresholds
func DefaultPolicy() Policy {
	return Policy{
		HexThreshold:   DefaultHexThreshold,
		FontThreshold:  DefaultFontThreshold,
		BlockThreshold: DefaultBlockThreshold,
	}
}

// Verdict is TAMPERED iff the hex count or the font count exceeds its threshold
func (p Policy) Verdict(c SignalCounts) Verdict {
	if c.SuspiciousHexBlocks > p.HexThreshold || c.SuspiciousFontReferences > p.FontThreshold {
		return VerdictTampered
	}
	return VerdictClean
}

// Quarantine reports whether the block count reaches the block threshold
func (p Policy) Quarantine(c SignalCounts) bool {
	return c.SuspiciousBlocks >= p.BlockThreshold
}
