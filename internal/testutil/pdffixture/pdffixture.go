// Package pdffixture writes small, valid single-font PDFs for tests.
package pdffixture

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// FontSize and GlyphWidth describe the generated text layout: every
// character advances GlyphWidth/1000*FontSize points.
const (
	FontSize   = 12.0
	GlyphWidth = 500
	lineHeight = 16.0
)

// Build returns a PDF with one page per entry. Lines within an entry are
// separated by "\n"; an empty entry produces a page with no text. Only
// printable ASCII is supported.
func Build(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = fmt.Sprint(GlyphWidth)
	}
	obj(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		strings.Join(widths, " ")))

	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := contentStream(text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteFile writes Build(pages...) to path.
func WriteFile(path string, pages ...string) error {
	return os.WriteFile(path, Build(pages...), 0o644)
}

// LineOrigin returns the baseline origin of line i (0-based) on a page.
func LineOrigin(i int) (x, y float64) {
	return 72, 720 - lineHeight*float64(i)
}

func contentStream(text string) string {
	if text == "" {
		return ""
	}
	var sb strings.Builder
	for i, line := range strings.Split(text, "\n") {
		x, y := LineOrigin(i)
		fmt.Fprintf(&sb, "BT /F1 %g Tf 1 0 0 1 %g %g Tm (%s) Tj ET\n", FontSize, x, y, escape(line))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
