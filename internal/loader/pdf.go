package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/internal/domain"
)

// pageSource is the per-page view of a PDF the loader needs.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
	Close() error
}

type pdfFile struct {
	f *os.File
	r *pdf.Reader
}

func openPDFFile(path string) (pageSource, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfFile{f: f, r: r}, nil
}

func (p *pdfFile) NumPage() int { return p.r.NumPage() }

// PageText returns the plain text of page n (1-based). The reader panics on
// some malformed content streams, so panics are turned into errors.
func (p *pdfFile) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (p *pdfFile) Close() error { return p.f.Close() }

func (l *Loader) loadPDF(ctx context.Context, path string) ([]domain.TextUnit, error) {
	src, err := l.openPDF(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var units []domain.TextUnit
	for n := 1; n <= src.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := src.PageText(n)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		units = append(units, domain.TextUnit{Content: text, Position: domain.PageNumber(n)})
	}
	return units, nil
}
