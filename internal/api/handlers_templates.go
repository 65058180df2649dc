package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/waterdrop26651/FormulaAI/internal/template"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	names := s.orchestrator.Templates().Names()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"templates": names})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tpl, ok := s.orchestrator.Templates().Get(name)
	if !ok {
		jsonError(w, "template not found: "+name, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tpl)
}

func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	var tpl template.Template
	if err := dec.Decode(&tpl); err != nil {
		jsonError(w, "invalid template: "+err.Error(), http.StatusBadRequest)
		return
	}
	if tpl.Name == "" {
		tpl.Name = name
	}
	if tpl.Name != name {
		jsonError(w, "template name does not match URL", http.StatusBadRequest)
		return
	}

	if err := s.orchestrator.Templates().Put(tpl); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"name": tpl.Name, "status": "saved"})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.orchestrator.Templates().Delete(name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"name": name, "status": "deleted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	hist := s.orchestrator.History()
	if hist == nil {
		jsonError(w, "history store unavailable", http.StatusServiceUnavailable)
		return
	}
	runs, err := hist.Recent(r.Context(), limit)
	if err != nil {
		jsonError(w, "query history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": runs, "count": len(runs)})
}
