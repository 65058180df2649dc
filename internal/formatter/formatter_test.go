package formatter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/feature"
	"github.com/waterdrop26651/FormulaAI/internal/rules"
	"github.com/waterdrop26651/FormulaAI/internal/structure"
)

// bodyDoc builds a document of n prose paragraphs, all of which classify as
// body text.
func bodyDoc(n int) *docmodel.MemDocument {
	doc := docmodel.NewMemDocument("test")
	for i := 0; i < n; i++ {
		doc.Append(docmodel.Attributes{
			Text: fmt.Sprintf("Paragraph %d carries enough prose that nothing mistakes it for a document title.", i),
		})
	}
	return doc
}

func classify(t *testing.T, doc docmodel.Document) *structure.Tree {
	t.Helper()
	feats, err := feature.Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return structure.NewClassifier(structure.DefaultConfig()).Classify(feats)
}

func bodyResolved() map[structure.Role]*rules.Resolved {
	return map[structure.Role]*rules.Resolved{
		structure.RoleBody: {
			Format: docmodel.Format{
				FontName:    "Times New Roman",
				FontSizePt:  12,
				Alignment:   docmodel.AlignLeft,
				LineSpacing: 1.5,
			},
		},
	}
}

// flakyDoc injects per-paragraph write errors over a MemDocument.
type flakyDoc struct {
	*docmodel.MemDocument
	failAt map[int]error
}

func (d *flakyDoc) Write(i int, f docmodel.Format) error {
	if err, ok := d.failAt[i]; ok {
		return err
	}
	return d.MemDocument.Write(i, f)
}

func TestApply_BatchCountAndCoverage(t *testing.T) {
	doc := bodyDoc(101)
	tree := classify(t, doc)

	report := Apply(context.Background(), doc, tree, bodyResolved(), 20)

	if report.Status != StatusCompleted {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Updated != 101 {
		t.Errorf("updated = %d, want 101", report.Updated)
	}
	if len(report.Batches) != 6 {
		t.Fatalf("batches = %d, want 6", len(report.Batches))
	}
	if report.AbortedBatch != -1 {
		t.Errorf("aborted batch = %d, want -1", report.AbortedBatch)
	}
	// Batches tile the document with no gaps.
	if report.Batches[0].Start != 0 || report.Batches[0].End != 19 {
		t.Errorf("batch 0 covers %d-%d", report.Batches[0].Start, report.Batches[0].End)
	}
	last := report.Batches[5]
	if last.Start != 100 || last.End != 100 {
		t.Errorf("final batch covers %d-%d, want 100-100", last.Start, last.End)
	}
	for i := 1; i < len(report.Batches); i++ {
		if report.Batches[i].Start != report.Batches[i-1].End+1 {
			t.Errorf("gap between batch %d and %d", i-1, i)
		}
	}
}

func TestApply_LocalFailureDoesNotAbort(t *testing.T) {
	mem := bodyDoc(80)
	doc := &flakyDoc{
		MemDocument: mem,
		failAt:      map[int]error{45: errors.New("attribute rejected")},
	}
	tree := classify(t, mem)

	report := Apply(context.Background(), doc, tree, bodyResolved(), 20)

	if report.Status != StatusCompleted {
		t.Fatalf("one bad paragraph must not abort the run: status = %s", report.Status)
	}
	if report.Updated != 79 {
		t.Errorf("updated = %d, want 79", report.Updated)
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	// Paragraph 45 falls in batch 2 (40-59).
	batch := report.Batches[2]
	if len(batch.Failures) != 1 || batch.Failures[0].Index != 45 {
		t.Fatalf("failure not recorded in its batch: %+v", batch.Failures)
	}
	// The rest of the batch was still written.
	if p := mem.Paragraph(46); p.FontName != "Times New Roman" {
		t.Error("paragraph after the failure was not written")
	}
}

func TestApply_FatalErrorAbortsRun(t *testing.T) {
	mem := bodyDoc(80)
	doc := &flakyDoc{
		MemDocument: mem,
		failAt: map[int]error{
			30: &docmodel.FatalError{Err: errors.New("document handle lost")},
		},
	}
	tree := classify(t, mem)

	report := Apply(context.Background(), doc, tree, bodyResolved(), 20)

	if report.Status != StatusAborted {
		t.Fatalf("status = %s, want aborted", report.Status)
	}
	if report.AbortedBatch != 1 {
		t.Errorf("aborted batch = %d, want 1", report.AbortedBatch)
	}
	if report.Cause == "" {
		t.Error("an aborted report must carry a cause")
	}
	// Paragraphs before the fatal write kept their updates.
	if report.Updated != 30 {
		t.Errorf("updated = %d, want 30", report.Updated)
	}
	// The fatal paragraph shows up both in Failed and in its batch's
	// failure list, so the counters agree with the batch detail.
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	var failures int
	for _, b := range report.Batches {
		failures += len(b.Failures)
	}
	if failures != report.Failed {
		t.Errorf("batch failures = %d, report.Failed = %d", failures, report.Failed)
	}
	// Nothing after the abort point was touched.
	if p := mem.Paragraph(31); p.FontName != "" {
		t.Error("paragraph after the fatal write should be untouched")
	}
}

func TestApply_MissingRoleIsSkipped(t *testing.T) {
	doc := bodyDoc(10)
	tree := classify(t, doc)

	report := Apply(context.Background(), doc, tree, map[structure.Role]*rules.Resolved{}, 20)

	if report.Status != StatusCompleted {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Skipped != 10 || report.Updated != 0 {
		t.Errorf("skipped = %d, updated = %d", report.Skipped, report.Updated)
	}
}

func TestApply_BatchSizeDoesNotChangeOutput(t *testing.T) {
	docA := bodyDoc(53)
	docB := bodyDoc(53)
	treeA := classify(t, docA)
	treeB := classify(t, docB)

	ra := Apply(context.Background(), docA, treeA, bodyResolved(), 1)
	rb := Apply(context.Background(), docB, treeB, bodyResolved(), 50)

	if ra.Updated != rb.Updated {
		t.Fatalf("updated differs: %d vs %d", ra.Updated, rb.Updated)
	}
	for i := 0; i < docA.Len(); i++ {
		pa, pb := docA.Paragraph(i), docB.Paragraph(i)
		if pa.FontName != pb.FontName || pa.LineSpacing != pb.LineSpacing ||
			pa.Alignment != pb.Alignment || *pa.FontSizePt != *pb.FontSizePt {
			t.Fatalf("paragraph %d differs between batch sizes", i)
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	doc := bodyDoc(20)
	tree := classify(t, doc)
	resolved := bodyResolved()

	Apply(context.Background(), doc, tree, resolved, 7)
	first := make([]docmodel.MemParagraph, doc.Len())
	for i := range first {
		first[i] = doc.Paragraph(i)
	}

	report := Apply(context.Background(), doc, tree, resolved, 7)
	if report.Updated != 20 {
		t.Fatalf("second pass updated = %d", report.Updated)
	}
	for i := range first {
		p := doc.Paragraph(i)
		if p.FontName != first[i].FontName || *p.FontSizePt != *first[i].FontSizePt ||
			p.Alignment != first[i].Alignment {
			t.Fatalf("paragraph %d changed on the second pass", i)
		}
	}
}

func TestApply_CancelledContextAborts(t *testing.T) {
	doc := bodyDoc(10)
	tree := classify(t, doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := Apply(ctx, doc, tree, bodyResolved(), 5)
	if report.Status != StatusAborted {
		t.Fatalf("status = %s, want aborted", report.Status)
	}
	if report.Updated != 0 {
		t.Errorf("updated = %d, want 0", report.Updated)
	}
	if report.AbortedBatch != 0 {
		t.Errorf("aborted batch = %d, want 0", report.AbortedBatch)
	}
}

func TestApply_DefaultBatchSize(t *testing.T) {
	doc := bodyDoc(60)
	tree := classify(t, doc)

	report := Apply(context.Background(), doc, tree, bodyResolved(), 0)
	if len(report.Batches) != 2 {
		t.Fatalf("batches = %d, want 2 at the default size", len(report.Batches))
	}
}
