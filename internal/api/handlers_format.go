package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waterdrop26651/FormulaAI/internal/loader"
	"github.com/waterdrop26651/FormulaAI/internal/pipeline"
	"github.com/waterdrop26651/FormulaAI/internal/rules"
)

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !loader.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	templateName := r.FormValue("template")
	if templateName != "" {
		if _, ok := s.orchestrator.Templates().Get(templateName); !ok {
			jsonError(w, "template not found: "+templateName, http.StatusBadRequest)
			return
		}
	}

	intent := strings.TrimSpace(r.FormValue("intent"))

	overrides, err := parseOverrides(r.FormValue("rules"))
	if err != nil {
		jsonError(w, "invalid rules: "+err.Error(), http.StatusBadRequest)
		return
	}

	batchSize := 0
	if v := r.FormValue("batch_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batchSize = n
		}
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:           pipeline.NewJobID(),
		Filename:     filename,
		TemplateName: templateName,
		Intent:       intent,
		Overrides:    overrides,
		BatchSize:    batchSize,
		Status:       pipeline.StatusQueued,
		Phase:        "queued",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	job.SetFileData(data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/format/%s/status", job.ID),
	})
}

// parseOverrides decodes the optional role-keyed rule overrides sent with
// the upload. Unknown fields and out-of-range values are rejected up front
// so bad overrides never reach a worker.
func parseOverrides(raw string) (*rules.RuleSet, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var rm map[string]rules.FormatRule
	if err := dec.Decode(&rm); err != nil {
		return nil, err
	}
	for role, rule := range rm {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("role %q: %w", role, err)
		}
	}
	return &rules.RuleSet{Name: "overrides", Rules: rm}, nil
}

func (s *Server) handleFormatStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":      snap.ID,
		"status":      snap.Status,
		"phase":       snap.Phase,
		"progress":    snap.Progress,
		"output_path": snap.OutputPath,
	})
}

func (s *Server) handleFormatReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	report := job.Report()
	if report == nil {
		jsonError(w, "report not available yet", http.StatusConflict)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":      snap.ID,
		"status":      snap.Status,
		"output_path": snap.OutputPath,
		"report":      report,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
