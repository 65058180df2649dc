package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/waterdrop26651/FormulaAI/internal/config"
	"github.com/waterdrop26651/FormulaAI/internal/history"
	"github.com/waterdrop26651/FormulaAI/internal/template"
)

// Orchestrator manages the document formatting pipeline.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	ai        RuleCompleter
	templates *template.Store
	hist      *history.Store
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards closed; Submit may race with Stop from an in-flight
	// HTTP handler, and a send on a closed channel panics.
	mu     sync.Mutex
	closed bool
}

// NewOrchestrator creates the pipeline. ai may be nil when no AI endpoint
// is configured.
func NewOrchestrator(cfg config.Config, ai RuleCompleter, templates *template.Store, hist *history.Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		ai:        ai,
		templates: templates,
		hist:      hist,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.ai, o.templates, o.hist, o.log, o.cfg.OutputDir, o.cfg.BatchSize, o.cfg.PDFFallbackPdftotext)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Submit calls after Stop are
// rejected rather than queued.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		job.SetStatus(StatusFailed, "queue_closed")
		return fmt.Errorf("pipeline is shutting down")
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// History returns the run history store for direct use by API handlers.
func (o *Orchestrator) History() *history.Store {
	return o.hist
}

// Templates returns the template store for direct use by API handlers.
func (o *Orchestrator) Templates() *template.Store {
	return o.templates
}
