package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/waterdrop26651/FormulaAI/internal/airules"
	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/docxout"
	"github.com/waterdrop26651/FormulaAI/internal/feature"
	"github.com/waterdrop26651/FormulaAI/internal/formatter"
	"github.com/waterdrop26651/FormulaAI/internal/history"
	"github.com/waterdrop26651/FormulaAI/internal/loader"
	"github.com/waterdrop26651/FormulaAI/internal/rules"
	"github.com/waterdrop26651/FormulaAI/internal/structure"
	"github.com/waterdrop26651/FormulaAI/internal/template"
)

// RuleCompleter is the AI surface the worker needs; satisfied by
// *airules.Client and by test fakes.
type RuleCompleter interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Worker processes a single formatting job end to end.
type Worker struct {
	ai        RuleCompleter // nil when no AI key is configured
	templates *template.Store
	hist      *history.Store
	log       *slog.Logger

	classifier           *structure.Classifier
	outputDir            string
	batchSize            int
	pdfFallbackPdftotext bool
}

func NewWorker(ai RuleCompleter, templates *template.Store, hist *history.Store, log *slog.Logger, outputDir string, batchSize int, pdfFallback bool) *Worker {
	return &Worker{
		ai:                   ai,
		templates:            templates,
		hist:                 hist,
		log:                  log,
		classifier:           structure.NewClassifier(structure.DefaultConfig()),
		outputDir:            outputDir,
		batchSize:            batchSize,
		pdfFallbackPdftotext: pdfFallback,
	}
}

// Process runs the full formatting pipeline for a job:
// load -> extract -> classify -> resolve -> apply -> save.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Load.
	job.SetStatus(StatusLoading, "loading")
	doc, err := w.load(job)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}
	job.SetParagraphs(doc.Len())

	// Phase 2: Extract + classify.
	job.SetStatus(StatusClassifying, "classifying")
	features, err := feature.Extract(doc)
	if err != nil {
		log.Error("feature extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "classifying")
		return
	}
	tree := w.classifier.Classify(features)
	log.Info("classified document", "paragraphs", tree.Len(), "roles", len(tree.Roles()))

	// Phase 3: Assemble rule sources and resolve.
	job.SetStatus(StatusResolving, "resolving")
	sets, err := w.assembleRuleSets(ctx, job, tree, log)
	if err != nil {
		log.Error("rule assembly failed", "error", err)
		job.AddError(fmt.Sprintf("rules: %s", err))
		job.SetStatus(StatusFailed, "resolving")
		return
	}
	resolver, err := rules.NewResolver(sets, rules.GlobalDefaults())
	if err != nil {
		log.Error("rule validation failed", "error", err)
		job.AddError(fmt.Sprintf("rules: %s", err))
		job.SetStatus(StatusFailed, "resolving")
		return
	}
	resolved := resolver.Resolve(tree)

	// Phase 4: Apply in batches.
	job.SetStatus(StatusFormatting, "formatting")
	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = w.batchSize
	}
	report := formatter.Apply(ctx, doc, tree, resolved, batchSize)
	job.SetReport(&report)
	log.Info("formatting applied",
		"status", report.Status,
		"updated", report.Updated,
		"failed", report.Failed,
		"batches", len(report.Batches),
	)

	if report.Status == formatter.StatusAborted {
		job.AddError(report.Cause)
		job.SetStatus(StatusAborted, "formatting")
		w.record(job)
		return
	}

	// Phase 5: Save.
	job.SetStatus(StatusSaving, "saving")
	outPath := w.outputPath(job.Filename)
	if err := docxout.WriteFile(outPath, doc); err != nil {
		log.Error("save failed", "path", outPath, "error", err)
		job.AddError(fmt.Sprintf("save: %s", err))
		job.SetStatus(StatusFailed, "saving")
		w.record(job)
		return
	}
	job.SetOutputPath(outPath)

	if report.Failed > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job done", "status", job.Status, "output", outPath)
	w.record(job)
}

func (w *Worker) load(job *Job) (*docmodel.MemDocument, error) {
	l, err := loader.ForFile(job.Filename)
	if err != nil {
		return nil, err
	}
	if pl, ok := l.(*loader.PDFLoader); ok {
		pl.FallbackPdftotext = w.pdfFallbackPdftotext
	}
	return l.Load(bytes.NewReader(job.FileData()), job.Filename)
}

// assembleRuleSets builds the precedence-ordered sources:
// user overrides > AI-derived > named template > builtin.
func (w *Worker) assembleRuleSets(ctx context.Context, job *Job, tree *structure.Tree, log *slog.Logger) ([]rules.RuleSet, error) {
	var sets []rules.RuleSet

	if job.Overrides != nil && len(job.Overrides.Rules) > 0 {
		sets = append(sets, *job.Overrides)
	}

	if intent := strings.TrimSpace(job.Intent); intent != "" {
		if w.ai == nil {
			return nil, fmt.Errorf("formatting intent given but no AI endpoint configured")
		}
		aiSet, err := w.deriveAIRules(ctx, intent, tree, log)
		if err != nil {
			return nil, err
		}
		sets = append(sets, aiSet)
	}

	if job.TemplateName != "" {
		tpl, ok := w.templates.Get(job.TemplateName)
		if !ok {
			return nil, fmt.Errorf("template not found: %s", job.TemplateName)
		}
		sets = append(sets, tpl.RuleSet())
	}

	sets = append(sets, rules.BuiltinRuleSet())
	return sets, nil
}

// deriveAIRules calls the model, retrying transient failures.
func (w *Worker) deriveAIRules(ctx context.Context, intent string, tree *structure.Tree, log *slog.Logger) (rules.RuleSet, error) {
	prompt := airules.BuildRulesPrompt(intent, tree)

	var completion string
	var lastErr error
	for attempt := range MaxRetries {
		completion, lastErr = w.ai.Complete(ctx, airules.RulesSystemPrompt, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable AI error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return rules.RuleSet{}, ctx.Err()
		}
	}
	if lastErr != nil {
		return rules.RuleSet{}, fmt.Errorf("derive rules: %w", lastErr)
	}

	set, err := airules.ParseRuleSet(completion)
	if err != nil {
		return rules.RuleSet{}, err
	}
	log.Info("AI rules derived", "roles", len(set.Rules))
	return set, nil
}

func (w *Worker) outputPath(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(w.outputDir, base+"_formatted.docx")
}

func (w *Worker) record(job *Job) {
	if w.hist == nil {
		return
	}
	snap := job.Snapshot()
	run := history.Run{
		ID:         snap.ID,
		Filename:   snap.Filename,
		Template:   snap.Template,
		Status:     string(snap.Status),
		Updated:    snap.Progress.Updated,
		Skipped:    snap.Progress.Skipped,
		Failed:     snap.Progress.Failed,
		OutputPath: snap.OutputPath,
		CreatedAt:  job.CreatedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.hist.Record(ctx, run); err != nil {
		w.log.Warn("history record failed", "job_id", snap.ID, "error", err)
	}
}
