package pipeline

import (
	"sync"
	"time"

	"github.com/waterdrop26651/FormulaAI/internal/formatter"
	"github.com/waterdrop26651/FormulaAI/internal/rules"
)

// JobStatus represents the state of a formatting job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusLoading     JobStatus = "loading"
	StatusClassifying JobStatus = "classifying"
	StatusResolving   JobStatus = "resolving"
	StatusFormatting  JobStatus = "formatting"
	StatusSaving      JobStatus = "saving"
	StatusCompleted   JobStatus = "completed"
	StatusPartial     JobStatus = "partial"
	StatusFailed      JobStatus = "failed"
	StatusAborted     JobStatus = "aborted"
)

// Job tracks the state of a single document formatting run.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	// Rule sources, in caller precedence order: overrides beat AI-derived
	// rules beat the named template beat the builtin defaults.
	TemplateName string         `json:"template,omitempty"`
	Intent       string         `json:"-"`
	Overrides    *rules.RuleSet `json:"-"`

	BatchSize int `json:"-"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	report   *formatter.Report
}

// Progress tracks processing progress.
type Progress struct {
	Paragraphs int      `json:"paragraphs"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// SetParagraphs records the document's paragraph count.
func (j *Job) SetParagraphs(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Paragraphs = n
	j.UpdatedAt = time.Now()
}

// SetReport stores the formatter's report and folds its counts into the
// progress.
func (j *Job) SetReport(r *formatter.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report = r
	j.Progress.Updated = r.Updated
	j.Progress.Skipped = r.Skipped
	j.Progress.Failed = r.Failed
	j.UpdatedAt = time.Now()
}

// Report returns the formatter report, nil before the formatting phase.
func (j *Job) Report() *formatter.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// SetOutputPath records where the formatted document was written.
func (j *Job) SetOutputPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	Filename   string    `json:"filename"`
	Template   string    `json:"template,omitempty"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Template: j.TemplateName,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			Paragraphs: j.Progress.Paragraphs,
			Updated:    j.Progress.Updated,
			Skipped:    j.Progress.Skipped,
			Failed:     j.Progress.Failed,
			Errors:     errs,
		},
		OutputPath: j.OutputPath,
	}
}
