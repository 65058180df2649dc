package loader

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// MarkdownLoader handles Markdown files using goldmark. Headings become
// paragraphs with synthetic emphasis features; list items keep a leading
// marker so the list heuristic fires.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*docmodel.MemDocument, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	title := strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown")
	doc := docmodel.NewMemDocument(title)

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			t := string(node.Text(src))
			if t == "" {
				continue
			}
			doc.Append(headingAttrs(node.Level, t))
		case *ast.List:
			appendListItems(doc, node, src, 0)
		case *ast.Blockquote:
			for _, t := range blockParagraphs(node, src) {
				attrs := bodyAttrs(t)
				attrs.LeftIndentPt = 36
				doc.Append(attrs)
			}
		default:
			for _, t := range blockParagraphs(n, src) {
				doc.Append(bodyAttrs(t))
			}
		}
	}

	return doc, nil
}

func appendListItems(doc *docmodel.MemDocument, list *ast.List, src []byte, depth int) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var nested []*ast.List
		var buf bytes.Buffer
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(extractText(c, src))
		}
		t := strings.TrimSpace(buf.String())
		if t != "" {
			attrs := bodyAttrs("- " + t)
			attrs.LeftIndentPt = float64(depth) * 20
			doc.Append(attrs)
		}
		for _, sub := range nested {
			appendListItems(doc, sub, src, depth+1)
		}
	}
}

// blockParagraphs flattens one top-level block into paragraph strings.
func blockParagraphs(n ast.Node, src []byte) []string {
	t := extractText(n, src)
	if t == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(t, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
