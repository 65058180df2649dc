package docmodel

import "fmt"

// MemParagraph is one paragraph of a MemDocument. HasRun distinguishes a
// paragraph with an (possibly empty) text run from a structurally empty one.
type MemParagraph struct {
	Attributes

	HasRun        bool
	SpaceBeforePt float64
	SpaceAfterPt  float64
}

// MemDocument is an in-memory Document. The loaders build one per ingested
// file; the formatter writes resolved formats back into it; the docx writer
// serialises it.
type MemDocument struct {
	Title string

	paras  []MemParagraph
	closed bool
}

// NewMemDocument creates an empty document with the given title.
func NewMemDocument(title string) *MemDocument {
	return &MemDocument{Title: title}
}

// Append adds a paragraph with a text run.
func (d *MemDocument) Append(attrs Attributes) {
	d.paras = append(d.paras, MemParagraph{Attributes: attrs, HasRun: true})
}

// AppendEmpty adds a structurally empty paragraph (no run, no attributes).
func (d *MemDocument) AppendEmpty() {
	d.paras = append(d.paras, MemParagraph{})
}

func (d *MemDocument) Len() int { return len(d.paras) }

func (d *MemDocument) Read(i int) (Attributes, error) {
	if i < 0 || i >= len(d.paras) {
		return Attributes{}, fmt.Errorf("paragraph %d out of range [0,%d)", i, len(d.paras))
	}
	return d.paras[i].Attributes, nil
}

func (d *MemDocument) Write(i int, f Format) error {
	if d.closed {
		return &FatalError{Err: ErrUnwritable}
	}
	if i < 0 || i >= len(d.paras) {
		return fmt.Errorf("paragraph %d out of range [0,%d)", i, len(d.paras))
	}
	p := &d.paras[i]
	// Writing creates a run if none exists.
	p.HasRun = true
	p.FontName = f.FontName
	size := f.FontSizePt
	p.FontSizePt = &size
	p.Bold = f.Bold
	p.Italic = f.Italic
	p.Alignment = f.Alignment
	p.FirstLineIndentPt = f.FirstLineIndentPt
	p.LineSpacing = f.LineSpacing
	p.SpaceBeforePt = f.SpaceBeforePt
	p.SpaceAfterPt = f.SpaceAfterPt
	return nil
}

// Paragraph returns the full stored state of paragraph i, including the
// write-only spacing fields. It is read-only for callers.
func (d *MemDocument) Paragraph(i int) MemParagraph {
	return d.paras[i]
}

// Close marks the document unwritable. Subsequent writes fail fatally.
func (d *MemDocument) Close() {
	d.closed = true
}
