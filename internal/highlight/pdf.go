package highlight

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	api.DisableConfigDir()
}

// pdfDocument reads glyph positions with ledongthuc/pdf and writes
// annotations through a pdfcpu context over the same file.
type pdfDocument struct {
	file    *os.File
	reader  *pdf.Reader
	ctx     *model.Context
	layouts map[int]*pageLayout
}

// OpenPDF opens path for searching and annotation.
func OpenPDF(path string) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &pdfDocument{file: f, reader: r, ctx: ctx, layouts: map[int]*pageLayout{}}, nil
}

func (d *pdfDocument) PageCount() int { return d.reader.NumPage() }

func (d *pdfDocument) Search(page int, needle string) ([]Match, error) {
	l, err := d.layout(page)
	if err != nil {
		return nil, err
	}
	return l.find(needle), nil
}

func (d *pdfDocument) layout(page int) (l *pageLayout, err error) {
	if l, ok := d.layouts[page]; ok {
		return l, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read page %d: %v", page, r)
		}
	}()
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", page)
	}
	l = newPageLayout(p.Content().Text)
	d.layouts[page] = l
	return l, nil
}

// AddHighlight appends a yellow highlight annotation to the page's Annots.
func (d *pdfDocument) AddHighlight(page int, m Match) error {
	if len(m) == 0 {
		return errors.New("empty match")
	}
	pageDict, pageRef, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return err
	}
	if pageDict == nil || pageRef == nil {
		return fmt.Errorf("page %d not found", page)
	}

	quads := make([]float64, 0, 8*len(m))
	for _, r := range m {
		// Upper-left, upper-right, lower-left, lower-right.
		quads = append(quads, r.LLX, r.URY, r.URX, r.URY, r.LLX, r.LLY, r.URX, r.LLY)
	}
	b := m.Bounds()
	annot := types.Dict(map[string]types.Object{
		"Type":       types.Name("Annot"),
		"Subtype":    types.Name("Highlight"),
		"Rect":       types.NewNumberArray(b.LLX, b.LLY, b.URX, b.URY),
		"QuadPoints": types.NewNumberArray(quads...),
		"C":          types.NewNumberArray(1, 1, 0),
		"F":          types.Integer(4),
		"P":          *pageRef,
	})
	ref, err := d.ctx.IndRefForNewObject(annot)
	if err != nil {
		return err
	}

	var annots types.Array
	if obj, found := pageDict.Find("Annots"); found {
		existing, err := d.ctx.DereferenceArray(obj)
		if err != nil {
			return err
		}
		annots = append(annots, existing...)
	}
	annots = append(annots, *ref)
	pageDict.Update("Annots", annots)
	return nil
}

func (d *pdfDocument) Save(path string) error {
	return api.WriteContextFile(d.ctx, path)
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}

// CountAnnotations returns the number of highlight annotations in the PDF
// at path.
func CountAnnotations(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for page := 1; page <= ctx.PageCount; page++ {
		pageDict, _, _, err := ctx.PageDict(page, false)
		if err != nil {
			return 0, err
		}
		obj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(obj)
		if err != nil {
			return 0, err
		}
		for _, a := range annots {
			d, err := ctx.DereferenceDict(a)
			if err != nil || d == nil {
				continue
			}
			if st := d.NameEntry("Subtype"); st != nil && *st == "Highlight" {
				count++
			}
		}
	}
	return count, nil
}
