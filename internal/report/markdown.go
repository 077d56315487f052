package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/a3tai/pdf-forensics/internal/scan"
)

// WriteMarkdownSummary renders a batch summary for human review
func WriteMarkdownSummary(w io.Writer, rows []Row, generatedAt time.Time) error {
	md := markdown.NewMarkdown(w)

	md.H1("PDF Forensic Batch Summary")
	md.PlainText("")

	var tampered, quarantined int
	for _, row := range rows {
		if row.Verdict == scan.VerdictTampered {
			tampered++
		}
		if row.Quarantined {
			quarantined++
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", generatedAt.UTC().Format(TimestampLayout)},
			{"Files scanned", strconv.Itoa(len(rows))},
			{"Likely tampered", strconv.Itoa(tampered)},
			{"Quarantined", strconv.Itoa(quarantined)},
		},
	})
	md.PlainText("")

	switch {
	case tampered > 0 && quarantined > 0:
		md.Cautionf("%d file(s) look tampered and %d file(s) were quarantined.", tampered, quarantined)
	case tampered > 0:
		md.Warningf("%d file(s) look tampered.", tampered)
	case quarantined > 0:
		md.Importantf("%d file(s) were quarantined on the block signal.", quarantined)
	default:
		md.Tip("No file crossed a threshold.")
	}
	md.PlainText("")

	md.H2("Files")
	md.PlainText("")

	if len(rows) == 0 {
		md.PlainText("The intake directory was empty.")
		return md.Build()
	}

	tableRows := make([][]string, len(rows))
	for i, row := range rows {
		tableRows[i] = []string{
			"`" + row.FileName + "`",
			string(row.Verdict),
			strconv.Itoa(row.Signals.SuspiciousBlocks),
			strconv.Itoa(row.Signals.SuspiciousHexBlocks),
			strconv.Itoa(row.Signals.SuspiciousFontReferences),
			yesNo(row.Quarantined),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"File", "Verdict", "Suspicious blocks", "Hex blocks", "Font refs", "Quarantined"},
		Rows:   tableRows,
	})

	return md.Build()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
