package highlight

import (
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// pageLayout indexes a page's glyphs for text search. The haystack holds
// the lower-cased glyph text with all whitespace removed, so matching
// ignores the line breaks and spacing differences between extracted text
// and the rendered page.
type pageLayout struct {
	glyphs []pdf.Text
	hay    string
	// owner maps each haystack byte to its glyph.
	owner []int
}

func newPageLayout(glyphs []pdf.Text) *pageLayout {
	l := &pageLayout{glyphs: glyphs}
	var b strings.Builder
	for i, g := range glyphs {
		for _, r := range strings.ToLower(g.S) {
			if unicode.IsSpace(r) {
				continue
			}
			n, _ := b.WriteRune(r)
			for ; n > 0; n-- {
				l.owner = append(l.owner, i)
			}
		}
	}
	l.hay = b.String()
	return l
}

func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// find returns every non-overlapping occurrence of needle.
func (l *pageLayout) find(needle string) []Match {
	n := squeeze(needle)
	if n == "" {
		return nil
	}
	var out []Match
	for from := 0; from < len(l.hay); {
		i := strings.Index(l.hay[from:], n)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(n)
		if m := l.lines(start, end); len(m) > 0 {
			out = append(out, m)
		}
		from = end
	}
	return out
}

// lines builds one Rect per baseline for the glyphs in hay[start:end].
func (l *pageLayout) lines(start, end int) Match {
	var out Match
	var baseline, size float64
	last := -1
	for _, gi := range l.owner[start:end] {
		if gi == last {
			continue
		}
		last = gi
		g := l.glyphs[gi]
		fs := math.Max(math.Abs(g.FontSize), 1)
		if len(out) == 0 || math.Abs(g.Y-baseline) > fs/2 {
			baseline, size = g.Y, fs
			out = append(out, Rect{LLX: g.X, URX: g.X + g.W, LLY: g.Y - 0.2*fs, URY: g.Y + 0.8*fs})
			continue
		}
		r := &out[len(out)-1]
		if fs > size {
			size = fs
			r.LLY = min(r.LLY, baseline-0.2*fs)
			r.URY = max(r.URY, baseline+0.8*fs)
		}
		r.LLX = min(r.LLX, g.X)
		r.URX = max(r.URX, g.X+g.W)
	}
	return out
}
