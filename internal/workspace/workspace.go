// Package workspace lays out per-document artifacts on disk.
//
// For a document with identifier X the workspace holds:
//
//	X/X.<ext>   canonical copy of the uploaded source
//	X/db/       vector index
//	X/images/   rendered page previews
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/loader"
	"docqa/internal/logger"
)

const (
	indexDir  = "db"
	imagesDir = "images"
)

// ErrNotFound is returned by Lookup for unknown identifiers.
var ErrNotFound = errors.New("document not found in workspace")

// Workspace is a directory of processed documents.
type Workspace struct {
	root string
}

// New returns the workspace rooted at root.
func New(root string) *Workspace {
	return &Workspace{root: root}
}

func (w *Workspace) Root() string { return w.root }

// Identifier derives a filesystem-safe document identifier from a file
// name: its stem with characters outside [A-Za-z0-9._-] replaced by '_'.
func Identifier(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, stem)
	id = strings.TrimLeft(id, ".")
	if id == "" {
		id = "document"
	}
	return id
}

// Handle returns the handle a file named filename gets in the workspace.
func (w *Workspace) Handle(filename string) (domain.DocumentHandle, error) {
	format, err := loader.DetectFormat(filename)
	if err != nil {
		return domain.DocumentHandle{}, err
	}
	return w.handleFor(Identifier(filename), format), nil
}

func (w *Workspace) handleFor(id string, format loader.Format) domain.DocumentHandle {
	dir := filepath.Join(w.root, id)
	return domain.DocumentHandle{
		Identifier: id,
		SourcePath: filepath.Join(dir, id+"."+string(format)),
		IndexPath:  filepath.Join(dir, indexDir),
	}
}

// ImagesDir is where page previews of h are stored.
func ImagesDir(h domain.DocumentHandle) string {
	return filepath.Join(filepath.Dir(h.IndexPath), imagesDir)
}

// HighlightPath is the default output path for an annotated copy of h.
func HighlightPath(h domain.DocumentHandle) string {
	return filepath.Join(filepath.Dir(h.SourcePath), h.Identifier+"_highlighted.pdf")
}

// Imported describes the result of Import.
type Imported struct {
	Handle domain.DocumentHandle
	// Processed reports whether an index already existed.
	Processed bool
}

// Import copies srcPath to its canonical location, replacing an earlier
// copy of the same document. An identifier already holding a source of a
// different format is rejected.
func (w *Workspace) Import(srcPath string) (Imported, error) {
	h, err := w.Handle(srcPath)
	if err != nil {
		return Imported{}, err
	}
	if other, err := w.Lookup(h.Identifier); err == nil && other.SourcePath != h.SourcePath {
		return Imported{}, fmt.Errorf("identifier %q already holds %s", h.Identifier, filepath.Base(other.SourcePath))
	}
	if err := os.MkdirAll(filepath.Dir(h.SourcePath), 0o755); err != nil {
		return Imported{}, err
	}
	if err := copyFile(srcPath, h.SourcePath); err != nil {
		return Imported{}, fmt.Errorf("import %s: %w", srcPath, err)
	}
	res := Imported{Handle: h, Processed: index.Exists(h.IndexPath)}
	logger.Info("Imported document", "document", h.Identifier, "path", h.SourcePath, "processed", res.Processed)
	return res, nil
}

// Lookup returns the handle of a stored document.
func (w *Workspace) Lookup(id string) (domain.DocumentHandle, error) {
	for _, format := range []loader.Format{loader.FormatPDF, loader.FormatDOCX} {
		h := w.handleFor(id, format)
		if fi, err := os.Stat(h.SourcePath); err == nil && fi.Mode().IsRegular() {
			return h, nil
		}
	}
	return domain.DocumentHandle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns every stored document, sorted by identifier.
func (w *Workspace) List() ([]domain.DocumentHandle, error) {
	matches, err := doublestar.Glob(os.DirFS(w.root), "*/*.{pdf,docx}")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []domain.DocumentHandle
	for _, m := range matches {
		dir, file := filepath.Split(filepath.FromSlash(m))
		id := filepath.Base(dir)
		format, err := loader.DetectFormat(file)
		if err != nil || file != id+"."+string(format) {
			continue
		}
		out = append(out, w.handleFor(id, format))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// copyFile writes src to dst through a temporary file in dst's directory.
func copyFile(src, dst string) error {
	if si, err := os.Stat(src); err != nil {
		return err
	} else if di, err := os.Stat(dst); err == nil && os.SameFile(si, di) {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dst), ".import-"+uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
