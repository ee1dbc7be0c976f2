// Package highlight marks retrieved passages in the source PDF and writes
// the result to a new file.
package highlight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// FallbackChars is the length of the leading snippet searched when a
// passage's full text is not found on its page.
const FallbackChars = 80

// Rect is an axis-aligned box in PDF user space.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Match is one occurrence of a search term: one Rect per text line it
// covers.
type Match []Rect

// Bounds returns the smallest Rect enclosing every line of m.
func (m Match) Bounds() Rect {
	if len(m) == 0 {
		return Rect{}
	}
	b := m[0]
	for _, r := range m[1:] {
		b.LLX = min(b.LLX, r.LLX)
		b.LLY = min(b.LLY, r.LLY)
		b.URX = max(b.URX, r.URX)
		b.URY = max(b.URY, r.URY)
	}
	return b
}

// Document is an open PDF that can be searched and annotated. Pages are
// 1-based.
type Document interface {
	PageCount() int
	// Search returns every non-overlapping, case-insensitive occurrence
	// of needle on page.
	Search(page int, needle string) ([]Match, error)
	AddHighlight(page int, m Match) error
	Save(path string) error
	Close() error
}

// Opener opens a Document.
type Opener func(path string) (Document, error)

// Result reports what a Highlight call did.
type Result struct {
	OutputPath  string
	Annotations int
	Skipped     int
}

// Highlighter annotates retrieved passages.
type Highlighter struct {
	open Opener
}

// New returns a Highlighter over PDF files.
func New() *Highlighter {
	return &Highlighter{open: OpenPDF}
}

// NewWithOpener returns a Highlighter using open.
func NewWithOpener(open Opener) *Highlighter {
	return &Highlighter{open: open}
}

// Highlight annotates every occurrence of each page-positioned unit and
// saves the document to outputPath. Units without a page position are
// skipped. A unit that cannot be found or annotated is logged and skipped;
// only failures to open or save the document are returned.
func (h *Highlighter) Highlight(ctx context.Context, sourcePath string, units []domain.TextUnit, outputPath string) (Result, error) {
	logger.Info("Highlighting answers in PDF", "path", sourcePath, "units", len(units))
	res := Result{OutputPath: outputPath}

	doc, err := h.open(sourcePath)
	if err != nil {
		logger.Error("Error while highlighting PDF", "path", sourcePath, "error", err)
		return res, domain.E(domain.KindHighlightFailure, "open "+sourcePath, err)
	}
	defer doc.Close()

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return res, domain.E(domain.KindHighlightFailure, "highlight "+sourcePath, err)
		}
		page, ok := u.Position.Page()
		if !ok {
			continue
		}
		n, err := h.highlightUnit(doc, page, u.Content)
		if err != nil {
			logger.Warn("Could not highlight passage", "page", page, "error", err)
			res.Skipped++
			continue
		}
		if n == 0 {
			logger.Debug("Passage not found on page", "page", page)
			res.Skipped++
		}
		res.Annotations += n
	}

	if err := doc.Save(outputPath); err != nil {
		logger.Error("Error while saving highlighted PDF", "path", outputPath, "error", err)
		return res, domain.E(domain.KindHighlightFailure, "save "+outputPath, err)
	}
	logger.Info("Highlighted PDF saved", "path", outputPath, "annotations", res.Annotations, "skipped", res.Skipped)
	return res, nil
}

func (h *Highlighter) highlightUnit(doc Document, page int, content string) (int, error) {
	if page < 1 || page > doc.PageCount() {
		return 0, fmt.Errorf("page %d out of range 1..%d", page, doc.PageCount())
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return 0, errors.New("empty passage")
	}
	matches, err := doc.Search(page, text)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		matches, err = doc.Search(page, domain.Snippet(text, FallbackChars))
		if err != nil {
			return 0, err
		}
	}
	for i, m := range matches {
		if err := doc.AddHighlight(page, m); err != nil {
			return i, err
		}
	}
	return len(matches), nil
}
