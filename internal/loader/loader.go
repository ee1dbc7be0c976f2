// Package loader turns PDF and DOCX files into position-tagged text units.
// One unit is one PDF page or one DOCX paragraph; no size-based splitting
// happens here.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// Format is a supported source format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	}
	return "", domain.E(domain.KindUnsupportedFormat, "load "+filepath.Base(path),
		fmt.Errorf("extension %q is neither .pdf nor .docx", filepath.Ext(path)))
}

// Supported reports whether Load accepts path.
func Supported(path string) bool {
	_, err := DetectFormat(path)
	return err == nil
}

// Loader extracts text units from source documents.
type Loader struct {
	openPDF func(path string) (pageSource, error)
}

// New returns a Loader backed by the ledongthuc/pdf reader.
func New() *Loader {
	return &Loader{openPDF: openPDFFile}
}

// Load parses path into text units. Blank pages and paragraphs are dropped.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.TextUnit, error) {
	format, err := DetectFormat(path)
	if err != nil {
		logger.Error("Unsupported document format", "path", path)
		return nil, err
	}
	var units []domain.TextUnit
	switch format {
	case FormatPDF:
		logger.Info("Loading PDF", "path", path)
		units, err = l.loadPDF(ctx, path)
	case FormatDOCX:
		logger.Info("Loading DOCX", "path", path)
		units, err = loadDOCX(ctx, path)
	}
	if err != nil {
		logger.Error("Error while loading document", "path", path, "error", err)
		return nil, domain.E(domain.KindParseFailure, "load "+filepath.Base(path), err)
	}
	logger.Info("Document loaded", "path", path, "format", string(format), "units", len(units))
	return units, nil
}
