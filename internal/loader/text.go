package loader

import (
	"bufio"
	"io"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// TextLoader handles plain text files. Blank lines delimit paragraphs; the
// paragraphs carry no font features, so structure detection falls entirely
// to the text heuristics.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) (*docmodel.MemDocument, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := docmodel.NewMemDocument(strings.TrimSuffix(filename, ".txt"))

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			doc.Append(docmodel.Attributes{Text: current.String()})
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}
