// Package docxout serialises a formatted in-memory document to .docx.
//
// The output document is rebuilt paragraph by paragraph rather than patched
// in place: every paragraph gets a fresh run carrying the resolved run
// attributes, which sidesteps mixed-run source documents entirely.
package docxout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fumiama/go-docx"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// Write serialises doc to w as a .docx file.
func Write(w io.Writer, doc *docmodel.MemDocument) error {
	out := docx.New().WithDefaultTheme()

	for i := 0; i < doc.Len(); i++ {
		p := doc.Paragraph(i)
		para := out.AddParagraph()

		if p.Alignment != docmodel.AlignUnset {
			para.Justification(justificationVal(p.Alignment))
		}
		setParagraphLayout(para, p)
		if !p.HasRun {
			continue
		}

		run := para.AddText(p.Text)
		if p.FontName != "" {
			run.Font(p.FontName, p.FontName, "", "")
		}
		if p.FontSizePt != nil {
			// w:sz is in half-points.
			run.Size(strconv.Itoa(int(*p.FontSizePt * 2)))
		}
		if p.Bold {
			run.Bold()
		}
		if p.Italic {
			run.Italic()
		}
	}

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// WriteFile writes doc to path, creating parent directories as needed.
func WriteFile(path string, doc *docmodel.MemDocument) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// setParagraphLayout writes the paragraph-level layout attributes: first-line
// indent (w:ind, twentieths of a point), line spacing (w:line, 240ths of a
// line with lineRule "auto") and space before (w:before, twentieths of a
// point). The Spacing element in this go-docx revision carries no w:after
// attribute, so space-after cannot be serialised; see DESIGN.md.
func setParagraphLayout(para *docx.Paragraph, p docmodel.MemParagraph) {
	spacing := &docx.Spacing{}
	if p.LineSpacing > 0 {
		spacing.Line = int(p.LineSpacing * 240)
		spacing.LineRule = "auto"
	}
	if p.SpaceBeforePt > 0 {
		spacing.Before = int(p.SpaceBeforePt * 20)
	}

	var ind *docx.Ind
	if p.FirstLineIndentPt > 0 {
		ind = &docx.Ind{FirstLine: int(p.FirstLineIndentPt * 20)}
	}

	if spacing.Line == 0 && spacing.Before == 0 && ind == nil {
		return
	}
	if para.Properties == nil {
		para.Properties = &docx.ParagraphProperties{}
	}
	if spacing.Line != 0 || spacing.Before != 0 {
		para.Properties.Spacing = spacing
	}
	if ind != nil {
		para.Properties.Ind = ind
	}
}

func justificationVal(a docmodel.Alignment) string {
	switch a {
	case docmodel.AlignCenter:
		return "center"
	case docmodel.AlignRight:
		return "right"
	case docmodel.AlignJustify:
		return "both"
	default:
		return "left"
	}
}
