package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/pipeline"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

// generateRequest is the body of the bulk generation endpoints. Content is
// ignored for stored templates.
type generateRequest struct {
	Content  doctree.Document `json:"content"`
	Context  resolve.Context  `json:"context"`
	Category catalog.Category `json:"category"`
	Entities []resolve.Entity `json:"entities"`
}

// checkGenerate reports the first problem with req, or "".
func (s *Server) checkGenerate(req generateRequest) string {
	switch {
	case !req.Category.Valid():
		return fmt.Sprintf("unknown context category %q", req.Category)
	case req.Category == catalog.Datum:
		return "datum cannot be used as the bulk category"
	case len(req.Entities) > s.cfg.MaxEntities:
		return fmt.Sprintf("too many entities: %d (max %d)", len(req.Entities), s.cfg.MaxEntities)
	}
	return ""
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	if msg := s.checkGenerate(req); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.generate(r, req))
}

func (s *Server) generate(r *http.Request, req generateRequest) bulk.Result {
	start := time.Now()
	res := s.engine.Bulk.Generate(r.Context(), req.Content, s.withToday(req.Context), req.Category, req.Entities)
	s.stats.Bulk.Record(time.Since(start), res.SucceededCount == 0 && res.FailedCount > 0)
	for _, er := range res.PerEntityResults {
		if er.Result != nil {
			s.stats.CountUnresolved(er.Result.UnresolvedPlaceholders)
		}
	}
	return res
}

func (s *Server) handleGenerateAsync(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	if msg := s.checkGenerate(req); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	s.submit(w, pipeline.Request{
		Content:  req.Content,
		Context:  s.withToday(req.Context),
		Category: req.Category,
		Entities: req.Entities,
	})
}

func (s *Server) submit(w http.ResponseWriter, req pipeline.Request) {
	job := pipeline.NewJob(req)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	res := job.Result()
	if !snap.Status.Done() || res == nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job has not finished",
			"status": snap.Status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"result": res,
	})
}
