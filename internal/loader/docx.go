package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docqa/internal/domain"
)

const documentPart = "word/document.xml"

func loadDOCX(ctx context.Context, path string) ([]domain.TextUnit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close()
		paragraphs, err := parseParagraphs(ctx, rc)
		if err != nil {
			return nil, err
		}
		return sectionUnits(paragraphs), nil
	}
	return nil, fmt.Errorf("%s not found", documentPart)
}

// sectionUnits drops blank paragraphs and numbers the survivors 1..M.
func sectionUnits(paragraphs []string) []domain.TextUnit {
	var units []domain.TextUnit
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		units = append(units, domain.TextUnit{Content: p, Position: domain.SectionIndex(len(units) + 1)})
	}
	return units
}

// parseParagraphs returns the text of every body-level w:p element in
// document order. Paragraphs nested in tables are not body-level.
func parseParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body":
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				inPara = true
				current.Reset()
			case inPara && name == "t":
				inText = true
			case inPara && name == "tab":
				current.WriteByte('\t')
			case inPara && (name == "br" || name == "cr"):
				current.WriteByte('\n')
			}
			stack = append(stack, name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch {
			case t.Name.Local == "t":
				inText = false
			case t.Name.Local == "p" && inPara && len(stack) > 0 && stack[len(stack)-1] == "body":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
