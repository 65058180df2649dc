// Package feature turns document paragraphs into flat feature records for
// the structure classifier.
package feature

import (
	"fmt"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// ParagraphFeature is the flat, read-only record extracted from one
// paragraph. Font fields are nil/zero when the paragraph has no run to read
// them from; downstream resolution fills the gap by role-level inheritance.
type ParagraphFeature struct {
	Index        int
	Text         string
	FontName     string
	FontSizePt   *float64
	Bold         bool
	Italic       bool
	Alignment    docmodel.Alignment
	LeftIndentPt float64
	LineSpacing  float64
}

// Empty reports whether the paragraph has no visible text.
func (f *ParagraphFeature) Empty() bool {
	return strings.TrimSpace(f.Text) == ""
}

// Extract reads every paragraph of doc, in order, into one feature each.
// The result always has exactly doc.Len() entries; a structurally empty
// paragraph yields a feature with empty text and nil font size.
func Extract(doc docmodel.Document) ([]ParagraphFeature, error) {
	n := doc.Len()
	features := make([]ParagraphFeature, 0, n)
	for i := 0; i < n; i++ {
		attrs, err := doc.Read(i)
		if err != nil {
			return nil, fmt.Errorf("read paragraph %d: %w", i, err)
		}
		features = append(features, ParagraphFeature{
			Index:        i,
			Text:         attrs.Text,
			FontName:     attrs.FontName,
			FontSizePt:   attrs.FontSizePt,
			Bold:         attrs.Bold,
			Italic:       attrs.Italic,
			Alignment:    attrs.Alignment,
			LeftIndentPt: attrs.LeftIndentPt,
			LineSpacing:  attrs.LineSpacing,
		})
	}
	return features, nil
}
