package highlight

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line lays s out as 6pt-wide glyphs starting at (x, y).
func line(s string, x, y float64) []pdf.Text {
	var out []pdf.Text
	for i, r := range s {
		out = append(out, pdf.Text{Font: "Courier", FontSize: 12, X: x + 6*float64(i), Y: y, W: 6, S: string(r)})
	}
	return out
}

func TestPageLayout_FindsAllOccurrencesCaseInsensitive(t *testing.T) {
	l := newPageLayout(line("Cash flow and CASH reserves", 72, 720))
	matches := l.find("cash")
	require.Len(t, matches, 2)
	require.Len(t, matches[0], 1)
	r := matches[0][0]
	assert.InDelta(t, 72, r.LLX, 1e-9)
	assert.InDelta(t, 96, r.URX, 1e-9)
	assert.InDelta(t, 717.6, r.LLY, 1e-9)
	assert.InDelta(t, 729.6, r.URY, 1e-9)
	assert.InDelta(t, 72+6*14, matches[1][0].LLX, 1e-9)
}

func TestPageLayout_NonOverlapping(t *testing.T) {
	l := newPageLayout(line("aaaa", 0, 100))
	assert.Len(t, l.find("aa"), 2)
}

func TestPageLayout_MatchAcrossLinesIgnoresWhitespace(t *testing.T) {
	glyphs := append(line("net income", 72, 720), line("rose sharply", 72, 704)...)
	l := newPageLayout(glyphs)

	matches := l.find("income  rose\nsharply")
	require.Len(t, matches, 1)
	require.Len(t, matches[0], 2)
	assert.InDelta(t, 72+6*4, matches[0][0].LLX, 1e-9)
	assert.InDelta(t, 72+6*10, matches[0][0].URX, 1e-9)
	assert.InDelta(t, 72, matches[0][1].LLX, 1e-9)
	assert.InDelta(t, 72+6*12, matches[0][1].URX, 1e-9)

	assert.Len(t, l.find("incomerose"), 1, "extracted text often drops the line break")
}

func TestPageLayout_NoMatch(t *testing.T) {
	l := newPageLayout(line("hello", 0, 0))
	assert.Empty(t, l.find("world"))
	assert.Empty(t, l.find("   "))
	assert.Empty(t, newPageLayout(nil).find("x"))
}
