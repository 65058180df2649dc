// Package loader ingests source files into the in-memory document model the
// formatting pipeline operates on.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

// Loader converts raw file bytes into an in-memory document.
type Loader interface {
	Load(r io.Reader, filename string) (*docmodel.MemDocument, error)
}

// SupportedExtensions lists file extensions this service can ingest.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Loaders for structured formats know the heading levels already; they
// synthesise run features (bold + a size ladder above the body size) so the
// classifier can rediscover the structure from features alone, the same way
// it would for a real unformatted docx.
const bodySizePt = 12.0

var headingSizesPt = [...]float64{20, 17, 15.5, 14.5, 13.5, 13}

func headingAttrs(level int, text string) docmodel.Attributes {
	if level < 1 {
		level = 1
	}
	if level > len(headingSizesPt) {
		level = len(headingSizesPt)
	}
	size := headingSizesPt[level-1]
	return docmodel.Attributes{
		Text:       text,
		FontSizePt: &size,
		Bold:       true,
		Alignment:  docmodel.AlignLeft,
	}
}

func bodyAttrs(text string) docmodel.Attributes {
	size := bodySizePt
	return docmodel.Attributes{
		Text:       text,
		FontSizePt: &size,
	}
}
