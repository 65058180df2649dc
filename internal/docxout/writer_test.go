package docxout

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
)

func TestWrite_ProducesValidDocx(t *testing.T) {
	doc := docmodel.NewMemDocument("test")
	size := 22.0
	doc.Append(docmodel.Attributes{
		Text:       "A Centered Title",
		FontName:   "Times New Roman",
		FontSizePt: &size,
		Bold:       true,
		Alignment:  docmodel.AlignCenter,
	})
	body := 12.0
	doc.Append(docmodel.Attributes{
		Text:       "Body paragraph written in justified prose.",
		FontSizePt: &body,
		Alignment:  docmodel.AlignJustify,
	})
	doc.AppendEmpty()

	xml := documentXML(t, doc)

	if !strings.Contains(xml, "A Centered Title") {
		t.Error("title text missing")
	}
	if !strings.Contains(xml, "Body paragraph") {
		t.Error("body text missing")
	}
	// Justify maps to the OOXML value "both".
	if !strings.Contains(xml, `"both"`) && !strings.Contains(xml, `w:val="both"`) {
		t.Error("justified alignment not serialised as 'both'")
	}
	// 22pt title is 44 half-points.
	if !strings.Contains(xml, "44") {
		t.Error("title size in half-points missing")
	}
}

func TestWrite_SerialisesParagraphLayout(t *testing.T) {
	doc := docmodel.NewMemDocument("test")
	doc.Append(docmodel.Attributes{Text: "Indented, spaced body text."})
	if err := doc.Write(0, docmodel.Format{
		FontName:          "Times New Roman",
		FontSizePt:        12,
		Alignment:         docmodel.AlignJustify,
		FirstLineIndentPt: 21,
		LineSpacing:       1.5,
		SpaceBeforePt:     6,
		SpaceAfterPt:      6,
	}); err != nil {
		t.Fatal(err)
	}

	xml := documentXML(t, doc)

	// 21pt first-line indent is 420 twentieths of a point.
	if !strings.Contains(xml, "<w:ind") || !strings.Contains(xml, `w:firstLine="420"`) {
		t.Error("first-line indent not serialised")
	}
	// 1.5 line spacing is 360 in 240ths-of-a-line units, rule "auto".
	if !strings.Contains(xml, "<w:spacing") || !strings.Contains(xml, `w:line="360"`) {
		t.Error("line spacing not serialised")
	}
	if !strings.Contains(xml, `w:lineRule="auto"`) {
		t.Error("line rule not serialised")
	}
	// 6pt space before is 120 twentieths of a point.
	if !strings.Contains(xml, `w:before="120"`) {
		t.Error("space before not serialised")
	}
}

func TestWrite_NoLayoutElementsWhenUnset(t *testing.T) {
	doc := docmodel.NewMemDocument("test")
	doc.Append(docmodel.Attributes{Text: "Untouched paragraph."})

	xml := documentXML(t, doc)
	if strings.Contains(xml, "<w:ind") {
		t.Error("w:ind emitted for a paragraph with no indent")
	}
	if strings.Contains(xml, "<w:spacing") {
		t.Error("w:spacing emitted for a paragraph with no spacing")
	}
}

// documentXML serialises doc and returns word/document.xml from the archive.
func documentXML(t *testing.T, doc *docmodel.MemDocument) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a zip archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatal("word/document.xml missing from archive")
	return ""
}

func TestJustificationVal(t *testing.T) {
	cases := map[docmodel.Alignment]string{
		docmodel.AlignLeft:    "left",
		docmodel.AlignCenter:  "center",
		docmodel.AlignRight:   "right",
		docmodel.AlignJustify: "both",
	}
	for in, want := range cases {
		if got := justificationVal(in); got != want {
			t.Errorf("justificationVal(%s) = %q, want %q", in, got, want)
		}
	}
}
