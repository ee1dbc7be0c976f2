package highlight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type search struct {
	page   int
	needle string
}

type fakeDocument struct {
	pages    int
	hits     map[string][]Match
	failOn   string
	saveErr  error
	searches []search
	added    map[int]int
	saved    string
	closed   bool
}

func newFake(pages int) *fakeDocument {
	return &fakeDocument{pages: pages, hits: map[string][]Match{}, added: map[int]int{}}
}

func (f *fakeDocument) PageCount() int { return f.pages }

func (f *fakeDocument) Search(page int, needle string) ([]Match, error) {
	f.searches = append(f.searches, search{page, needle})
	if f.failOn != "" && strings.Contains(needle, f.failOn) {
		return nil, errors.New("corrupt content stream")
	}
	return f.hits[needle], nil
}

func (f *fakeDocument) AddHighlight(page int, m Match) error {
	f.added[page]++
	return nil
}

func (f *fakeDocument) Save(path string) error {
	f.saved = path
	return f.saveErr
}

func (f *fakeDocument) Close() error {
	f.closed = true
	return nil
}

func opener(doc *fakeDocument) Opener {
	return func(string) (Document, error) { return doc, nil }
}

var oneRect = Match{{LLX: 72, LLY: 717, URX: 120, URY: 730}}

func TestHighlight_AnnotatesEveryOccurrence(t *testing.T) {
	doc := newFake(3)
	doc.hits["Revenue grew."] = []Match{oneRect, oneRect}
	units := []domain.TextUnit{{Content: "  Revenue grew.\n", Position: domain.PageNumber(2)}}

	res, err := NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf", units, "out.pdf")
	require.NoError(t, err)
	assert.Equal(t, Result{OutputPath: "out.pdf", Annotations: 2}, res)
	assert.Equal(t, map[int]int{2: 2}, doc.added)
	assert.Equal(t, []search{{2, "Revenue grew."}}, doc.searches)
	assert.Equal(t, "out.pdf", doc.saved)
	assert.True(t, doc.closed)
}

func TestHighlight_FallsBackToLeadingSnippet(t *testing.T) {
	long := strings.Repeat("abcdefghij", 12)
	snippet := long[:FallbackChars]
	doc := newFake(1)
	doc.hits[snippet] = []Match{oneRect}

	res, err := NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf",
		[]domain.TextUnit{{Content: long, Position: domain.PageNumber(1)}}, "out.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Annotations)
	assert.Equal(t, []search{{1, long}, {1, snippet}}, doc.searches)
}

func TestHighlight_NotFoundStillTriesFallbackAndSaves(t *testing.T) {
	doc := newFake(1)
	units := []domain.TextUnit{{Content: "short passage", Position: domain.PageNumber(1)}}

	res, err := NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf", units, "out.pdf")
	require.NoError(t, err)
	assert.Zero(t, res.Annotations)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, doc.searches, 2)
	assert.Equal(t, "out.pdf", doc.saved)
}

func TestHighlight_SkipsUnitsWithoutPage(t *testing.T) {
	doc := newFake(2)
	units := []domain.TextUnit{
		{Content: "docx paragraph", Position: domain.SectionIndex(1)},
		{Content: "no position"},
	}
	res, err := NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf", units, "out.pdf")
	require.NoError(t, err)
	assert.Empty(t, doc.searches)
	assert.Zero(t, res.Skipped)
}

func TestHighlight_PerUnitFailuresDoNotAbort(t *testing.T) {
	doc := newFake(5)
	doc.failOn = "broken"
	doc.hits["good one"] = []Match{oneRect}
	doc.hits["good two"] = []Match{oneRect}
	units := []domain.TextUnit{
		{Content: "good one", Position: domain.PageNumber(1)},
		{Content: "broken passage", Position: domain.PageNumber(2)},
		{Content: "off the end", Position: domain.PageNumber(9)},
		{Content: "good two", Position: domain.PageNumber(3)},
	}
	res, err := NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf", units, "out.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Annotations)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, map[int]int{1: 1, 3: 1}, doc.added)
}

func TestHighlight_OpenAndSaveFailures(t *testing.T) {
	h := NewWithOpener(func(string) (Document, error) { return nil, errors.New("not a pdf") })
	_, err := h.Highlight(context.Background(), "in.pdf", nil, "out.pdf")
	assert.ErrorIs(t, err, domain.ErrHighlightFailure)

	doc := newFake(1)
	doc.saveErr = errors.New("read-only file system")
	_, err = NewWithOpener(opener(doc)).Highlight(context.Background(), "in.pdf", nil, "out.pdf")
	assert.ErrorIs(t, err, domain.ErrHighlightFailure)
	assert.Contains(t, err.Error(), "read-only")
}

func TestMatchBounds(t *testing.T) {
	m := Match{{LLX: 72, LLY: 700, URX: 300, URY: 712}, {LLX: 72, LLY: 684, URX: 150, URY: 696}}
	assert.Equal(t, Rect{LLX: 72, LLY: 684, URX: 300, URY: 712}, m.Bounds())
	assert.Equal(t, Rect{}, Match{}.Bounds())
}
