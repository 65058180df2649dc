// Package formatter applies resolved formats to a document in bounded
// batches, recording per-paragraph failures without losing the run.
package formatter

import (
	"context"
	"fmt"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/rules"
	"github.com/waterdrop26651/FormulaAI/internal/structure"
)

// DefaultBatchSize bounds how many paragraphs are written before scratch
// state is released.
const DefaultBatchSize = 50

// Status is the terminal state of one Apply call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// ParagraphFailure records one paragraph the adapter refused.
type ParagraphFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult describes one contiguous batch: the paragraph range it covered
// and any local failures inside it.
type BatchResult struct {
	Index    int                `json:"index"`
	Start    int                `json:"start"` // first paragraph index, inclusive
	End      int                `json:"end"`   // last paragraph index, inclusive
	Failures []ParagraphFailure `json:"failures,omitempty"`
}

// Report is the sole output surface of an Apply call.
type Report struct {
	Status  Status        `json:"status"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Batches []BatchResult `json:"batches"`

	// AbortedBatch is the batch index where a fatal adapter error struck,
	// -1 when the run completed. Cause carries the underlying error text.
	AbortedBatch int    `json:"aborted_batch"`
	Cause        string `json:"cause,omitempty"`
}

// Apply walks the tree in document order, grouping nodes into batches of
// batchSize consecutive paragraphs, and writes each node's resolved format
// through the document adapter. A per-paragraph write failure is recorded
// and skipped past; a fatal adapter failure or a context cancellation stops
// the run at the next batch boundary. A batch is never interrupted mid-way.
func Apply(ctx context.Context, doc docmodel.Document, tree *structure.Tree, resolved map[structure.Role]*rules.Resolved, batchSize int) Report {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	nodes := tree.AllNodes()
	report := Report{Status: StatusCompleted, AbortedBatch: -1}

	for start := 0; start < len(nodes); start += batchSize {
		batchIdx := start / batchSize

		if err := ctx.Err(); err != nil {
			report.Status = StatusAborted
			report.AbortedBatch = batchIdx
			report.Cause = err.Error()
			return report
		}

		end := start + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}

		// Per-batch scratch; released when the batch result is folded
		// into the report and the slice goes out of scope.
		batch := BatchResult{
			Index: batchIdx,
			Start: nodes[start].Feature.Index,
			End:   nodes[end-1].Feature.Index,
		}

		for _, node := range nodes[start:end] {
			res, ok := resolved[node.Role]
			if !ok {
				report.Skipped++
				continue
			}
			if err := doc.Write(node.Feature.Index, res.Format); err != nil {
				if docmodel.IsFatal(err) {
					// The fatal paragraph counts as failed so the totals
					// reconcile with the batch failure lists.
					report.Failed++
					batch.Failures = append(batch.Failures, ParagraphFailure{
						Index: node.Feature.Index,
						Error: err.Error(),
					})
					report.Batches = append(report.Batches, batch)
					report.Status = StatusAborted
					report.AbortedBatch = batchIdx
					report.Cause = fmt.Sprintf("batch %d (paragraphs %d-%d): %v", batchIdx, batch.Start, batch.End, err)
					return report
				}
				report.Failed++
				batch.Failures = append(batch.Failures, ParagraphFailure{
					Index: node.Feature.Index,
					Error: err.Error(),
				})
				continue
			}
			report.Updated++
		}

		report.Batches = append(report.Batches, batch)
	}

	return report
}
