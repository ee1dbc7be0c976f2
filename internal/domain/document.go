package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// PositionKind discriminates where a text unit came from.
type PositionKind uint8

const (
	// PositionNone is the zero value; loaders never emit it.
	PositionNone PositionKind = iota
	// PositionPage marks a 1-based physical PDF page.
	PositionPage
	// PositionSection marks a 1-based DOCX paragraph among the non-blank ones.
	PositionSection
)

func (k PositionKind) String() string {
	switch k {
	case PositionPage:
		return "page"
	case PositionSection:
		return "section"
	default:
		return "none"
	}
}

// ParsePositionKind is the inverse of PositionKind.String.
func ParsePositionKind(s string) (PositionKind, error) {
	switch s {
	case "page":
		return PositionPage, nil
	case "section":
		return PositionSection, nil
	case "none", "":
		return PositionNone, nil
	}
	return PositionNone, fmt.Errorf("unknown position kind %q", s)
}

// Position locates a text unit in its source document. It is either a page
// number or a section index, never both.
type Position struct {
	kind  PositionKind
	index int
}

// PageNumber returns the position of a PDF page (1-based).
func PageNumber(n int) Position { return Position{kind: PositionPage, index: n} }

// SectionIndex returns the position of a DOCX section (1-based).
func SectionIndex(n int) Position { return Position{kind: PositionSection, index: n} }

// NewPosition rebuilds a position from its persisted parts.
func NewPosition(kind PositionKind, index int) Position {
	return Position{kind: kind, index: index}
}

// Kind reports which variant p holds.
func (p Position) Kind() PositionKind { return p.kind }

// Index returns the raw 1-based number regardless of the variant.
func (p Position) Index() int { return p.index }

// Page returns the page number when p is a page position.
func (p Position) Page() (int, bool) {
	if p.kind != PositionPage {
		return 0, false
	}
	return p.index, true
}

// Section returns the section index when p is a section position.
func (p Position) Section() (int, bool) {
	if p.kind != PositionSection {
		return 0, false
	}
	return p.index, true
}

func (p Position) String() string {
	if p.kind == PositionNone {
		return "none"
	}
	return fmt.Sprintf("%s %d", p.kind, p.index)
}

// TextUnit is one extracted, position-tagged piece of document text:
// a whole PDF page or a whole DOCX paragraph.
type TextUnit struct {
	Content  string
	Position Position
}

// DocumentHandle identifies a logical document inside a workspace.
// Identifier keys every persisted artifact of the document.
type DocumentHandle struct {
	Identifier string
	SourcePath string
	IndexPath  string
}

// Summary is the short abstractive summary produced at ingestion.
type Summary struct {
	Text string
}

// JoinContent concatenates unit contents separated by a blank line.
func JoinContent(units []TextUnit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.Content
	}
	return strings.Join(parts, "\n\n")
}

// Snippet returns at most limit runes of text.
func Snippet(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	r := []rune(text)
	return string(r[:limit])
}
