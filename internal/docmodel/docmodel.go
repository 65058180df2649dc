// Package docmodel defines the document access contract the formatting
// pipeline reads from and writes back to, plus the in-memory implementation
// used by the non-docx loaders and by tests.
package docmodel

import (
	"errors"
	"fmt"
)

// Alignment is a paragraph alignment value.
type Alignment string

const (
	AlignUnset   Alignment = ""
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// ValidAlignment reports whether s is a recognised alignment value
// (including the unset value).
func ValidAlignment(s Alignment) bool {
	switch s {
	case AlignUnset, AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return true
	}
	return false
}

// Attributes is the read-side view of one paragraph: its text plus the
// dominant run and paragraph-level layout attributes. FontSizePt is nil when
// the paragraph has no run or the runs disagree.
type Attributes struct {
	Text              string
	FontName          string
	FontSizePt        *float64
	Bold              bool
	Italic            bool
	Alignment         Alignment
	LeftIndentPt      float64
	FirstLineIndentPt float64
	LineSpacing       float64
}

// Format is the write-side attribute set applied to one paragraph. Every
// field is concrete; the resolver guarantees full population before anything
// reaches a document.
type Format struct {
	FontName          string
	FontSizePt        float64
	Bold              bool
	Italic            bool
	Alignment         Alignment
	FirstLineIndentPt float64
	LineSpacing       float64
	SpaceBeforePt     float64
	SpaceAfterPt      float64
}

// Document is the access adapter contract. Paragraph order is stable:
// index i always refers to the same paragraph for the lifetime of the
// document. Write must create a text run if the paragraph has none.
type Document interface {
	Len() int
	Read(i int) (Attributes, error)
	Write(i int, f Format) error
}

// ErrUnwritable signals that the document as a whole can no longer accept
// writes. Adapters wrap it (or any other unrecoverable condition) in a
// FatalError.
var ErrUnwritable = errors.New("document is not writable")

// FatalError marks an adapter failure that invalidates the whole document,
// as opposed to a single paragraph refusing one attribute.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal document error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
