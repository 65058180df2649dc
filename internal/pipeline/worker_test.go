package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/waterdrop26651/FormulaAI/internal/config"
	"github.com/waterdrop26651/FormulaAI/internal/template"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCompleter returns canned completions in order.
type fakeCompleter struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func newTestJob(t *testing.T, filename, content string) *Job {
	t.Helper()
	now := time.Now()
	job := &Job{
		ID:        NewJobID(),
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData([]byte(content))
	return job
}

const sampleText = `A Very Fine Report

The first section of the body explains what the report is about in plain prose.

The second section continues with more detail about the findings and their limits.
`

func TestWorker_ProcessTextToDocx(t *testing.T) {
	outDir := t.TempDir()
	w := NewWorker(nil, nil, nil, discardLog(), outDir, 50, false)

	job := newTestJob(t, "report.txt", sampleText)
	w.Process(context.Background(), job)

	if job.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", job.Status, job.Progress.Errors)
	}
	if job.Progress.Paragraphs != 3 {
		t.Errorf("paragraphs = %d, want 3", job.Progress.Paragraphs)
	}
	if job.Progress.Updated != 3 || job.Progress.Failed != 0 {
		t.Errorf("progress = %+v", job.Progress)
	}

	wantPath := filepath.Join(outDir, "report_formatted.docx")
	if job.OutputPath != wantPath {
		t.Errorf("output path = %q, want %q", job.OutputPath, wantPath)
	}
	if fi, err := os.Stat(wantPath); err != nil || fi.Size() == 0 {
		t.Errorf("output file missing or empty: %v", err)
	}
}

func TestWorker_IntentUsesAIRules(t *testing.T) {
	ai := &fakeCompleter{responses: []string{`{"body": {"font_name": "Georgia", "line_spacing": 2}}`}}
	w := NewWorker(ai, nil, nil, discardLog(), t.TempDir(), 50, false)

	job := newTestJob(t, "report.txt", sampleText)
	job.Intent = "Double space the body and use Georgia."
	w.Process(context.Background(), job)

	if job.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", job.Status, job.Progress.Errors)
	}
	if ai.calls != 1 {
		t.Errorf("AI called %d times", ai.calls)
	}
}

func TestWorker_IntentWithoutAIFails(t *testing.T) {
	w := NewWorker(nil, nil, nil, discardLog(), t.TempDir(), 50, false)

	job := newTestJob(t, "report.txt", sampleText)
	job.Intent = "Make it pretty."
	w.Process(context.Background(), job)

	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed without an AI client", job.Status)
	}
}

func TestWorker_BadAICompletionFailsJob(t *testing.T) {
	ai := &fakeCompleter{responses: []string{`certainly, here are the rules you asked for`}}
	w := NewWorker(ai, nil, nil, discardLog(), t.TempDir(), 50, false)

	job := newTestJob(t, "report.txt", sampleText)
	job.Intent = "Anything."
	w.Process(context.Background(), job)

	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed on unparseable rules", job.Status)
	}
	if len(job.Progress.Errors) == 0 {
		t.Error("failure should leave an error on the job")
	}
}

func TestWorker_MissingTemplateFailsJob(t *testing.T) {
	tpls, err := template.NewStore(t.TempDir(), discardLog())
	if err != nil {
		t.Fatal(err)
	}
	w := NewWorker(nil, tpls, nil, discardLog(), t.TempDir(), 50, false)

	job := newTestJob(t, "report.txt", sampleText)
	job.TemplateName = "no-such-template"
	w.Process(context.Background(), job)

	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed for a missing template", job.Status)
	}
}

func TestWorker_UnsupportedExtensionFailsJob(t *testing.T) {
	w := NewWorker(nil, nil, nil, discardLog(), t.TempDir(), 50, false)

	job := newTestJob(t, "data.csv", "a,b,c")
	w.Process(context.Background(), job)

	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
}

func TestOrchestrator_SubmitQueueFull(t *testing.T) {
	cfg := config.Config{
		WorkerCount:  1,
		MaxQueueSize: 1,
		JobTTL:       time.Hour,
	}
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, nil, nil, nil, discardLog())

	first := newTestJob(t, "a.txt", "hello world, a real paragraph of text")
	if err := o.Submit(first); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := newTestJob(t, "b.txt", "more text")
	if err := o.Submit(second); err == nil {
		t.Fatal("second submit should fail on a full queue")
	}
	if second.Status != StatusFailed {
		t.Errorf("rejected job status = %s", second.Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d", o.QueueDepth())
	}
	if o.GetJob(first.ID) == nil {
		t.Error("submitted job should be retrievable")
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	cfg := config.Config{
		WorkerCount:  1,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
	}
	o := NewOrchestrator(cfg, nil, nil, nil, discardLog())
	o.Stop()

	// A handler still holding the orchestrator must get an error back,
	// not a panic from a send on the closed queue.
	job := newTestJob(t, "late.txt", "arrived during shutdown")
	if err := o.Submit(job); err == nil {
		t.Fatal("submit after stop should fail")
	}
	if job.Status != StatusFailed {
		t.Errorf("rejected job status = %s, want %s", job.Status, StatusFailed)
	}

	// Stop is safe to call again.
	o.Stop()
}
