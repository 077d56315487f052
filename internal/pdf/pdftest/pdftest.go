// Package pdftest builds small, well-formed PDF files for tests. Offsets in
// the cross-reference table are computed, so the output opens with both
// ledongthuc/pdf and pdfcpu.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Page describes one page. Every line is drawn as its own text row.
type Page struct {
	Lines []string
	Image bool
}

// Document describes a whole file
type Document struct {
	Pages []Page
	// Info entries, e.g. "Title" or "CreationDate"
	Info map[string]string
	// Catalog is appended verbatim to the catalog dictionary,
	// e.g. "/OpenAction << /S /JavaScript /JS (app.alert(1)) >>"
	Catalog string
	// Encrypted adds a Standard security handler whose user password is
	// not empty. Nothing is actually encrypted, so no reader can open it.
	Encrypted bool
}

type builder struct {
	objects [][]byte
}

func (b *builder) add(body string) int {
	b.objects = append(b.objects, []byte(body))
	return len(b.objects)
}

func (b *builder) set(num int, body string) {
	b.objects[num-1] = []byte(body)
}

// Build renders the document to bytes
func Build(doc Document) []byte {
	b := &builder{}

	catalog := b.add("")
	pages := b.add("")
	font := b.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := make([]string, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		content := contentStream(page.Lines)
		contentRef := b.add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if page.Image {
			image := b.add("<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 1 >>\nstream\n\x00\nendstream")
			resources += fmt.Sprintf(" /XObject << /Im1 %d 0 R >>", image)
		}

		pageRef := b.add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << %s >> >>",
			pages, contentRef, resources))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageRef))
	}

	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R %s>>", pages, doc.Catalog))
	b.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))

	info := 0
	if len(doc.Info) > 0 {
		keys := make([]string, 0, len(doc.Info))
		for k := range doc.Info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var entries strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&entries, "/%s (%s) ", k, escape(doc.Info[k]))
		}
		info = b.add(fmt.Sprintf("<< %s>>", entries.String()))
	}

	encrypt := 0
	if doc.Encrypted {
		encrypt = b.add(fmt.Sprintf("<< /Filter /Standard /V 1 /R 2 /Length 40 /P -4 /O <%s> /U <%s> >>",
			strings.Repeat("11", 32), strings.Repeat("00", 32)))
	}

	return b.render(catalog, info, encrypt)
}

func (b *builder) render(root, info, encrypt int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R", len(b.objects)+1, root)
	if info != 0 {
		fmt.Fprintf(&buf, " /Info %d 0 R", info)
	}
	if encrypt != 0 {
		fmt.Fprintf(&buf, " /Encrypt %d 0 R /ID [<%s> <%s>]", encrypt, strings.Repeat("AB", 16), strings.Repeat("AB", 16))
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)

	return buf.Bytes()
}

func contentStream(lines []string) string {
	var s strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&s, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-20*i, escape(line))
	}
	return strings.TrimSuffix(s.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Write builds doc into dir/name and returns the path
func Write(t testing.TB, dir, name string, doc Document) string {
	t.Helper()
	return WriteBytes(t, dir, name, Build(doc))
}

// WriteBytes writes raw content into dir/name and returns the path
func WriteBytes(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// HexLines returns n distinct lines, each holding one hex block
func HexLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("<%08X>", 0xA0B0C0D0+i)
	}
	return lines
}
