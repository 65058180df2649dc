package loader

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// HTMLLoader handles HTML files. Heading tags carry their level into
// synthetic emphasis features; list items and blockquotes keep the shape the
// classifier heuristics look for.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) (*docmodel.MemDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm")
	if t := findTitle(root); t != "" {
		title = t
	}
	doc := docmodel.NewMemDocument(title)

	var walk func(n *html.Node, listDepth int)
	walk = func(n *html.Node, listDepth int) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if t := textContent(n); t != "" {
					doc.Append(headingAttrs(level, t))
				}
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "ul", "ol":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, listDepth+1)
				}
				return
			case "li":
				if t := ownText(n); t != "" {
					attrs := bodyAttrs("- " + t)
					if listDepth > 1 {
						attrs.LeftIndentPt = float64(listDepth-1) * 20
					}
					doc.Append(attrs)
				}
				// Nested lists live inside the <li>.
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
						walk(c, listDepth)
					}
				}
				return
			case "blockquote":
				if t := textContent(n); t != "" {
					attrs := bodyAttrs(t)
					attrs.LeftIndentPt = 36
					doc.Append(attrs)
				}
				return
			case "p", "td":
				if t := textContent(n); t != "" {
					doc.Append(bodyAttrs(t))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, listDepth)
		}
	}

	if body := findBody(root); body != nil {
		walk(body, 0)
	} else {
		walk(root, 0)
	}

	return doc, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// ownText is textContent minus any nested list content.
func ownText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				continue
			}
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
