package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/render"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/validate"
)

// processRequest is the body of the process and context-check endpoints.
type processRequest struct {
	Content doctree.Document `json:"content"`
	Context resolve.Context  `json:"context"`
}

func (s *Server) handleListPlaceholders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.FilterOptions{PrefixFirst: q.Get("prefix") == "true"}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"placeholders": s.engine.Catalog.Filter(q.Get("q"), opts),
	})
}

func (s *Server) handleTemplateCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.engine.Catalog.TemplateCategories(),
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.process(req.Content, req.Context))
}

// process runs one document and records stats. The result is returned even
// when Success is false; callers render it with 200.
func (s *Server) process(doc doctree.Document, ctx resolve.Context) processor.Result {
	start := time.Now()
	res := s.engine.Processor.Process(doc, s.withToday(ctx))
	s.stats.Process.Record(time.Since(start), !res.Success)
	s.stats.CountUnresolved(res.UnresolvedPlaceholders)
	if !res.Success {
		s.log.Warn("process failed", "errors", res.Errors)
	}
	return res
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var in validate.Input
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &in) {
		return
	}
	start := time.Now()
	res := s.engine.Validator.Validate(in)
	s.stats.Validate.Record(time.Since(start), !res.IsValid)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUsedPlaceholders(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"placeholders": s.engine.Processor.UsedPlaceholders(req.Content),
		"categories":   processor.ReferencedCategories(req.Content),
	})
}

func (s *Server) handleContextCheck(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	ctx := s.withToday(req.Context)
	cov := s.engine.Processor.Coverage(req.Content, ctx)
	writeJSON(w, http.StatusOK, contextCheckResponse{
		ContextCheck: s.engine.Processor.ValidateContext(req.Content, ctx),
		Coverage:     cov,
		Percent:      cov.Percent(),
	})
}

type contextCheckResponse struct {
	processor.ContextCheck
	Coverage processor.Coverage `json:"coverage"`
	Percent  int                `json:"coveragePercent"`
}

// exportFormats maps the format query parameter to a content type and file
// extension.
var exportFormats = map[string]struct{ contentType, ext string }{
	"txt":  {"text/plain; charset=utf-8", ".txt"},
	"md":   {"text/markdown; charset=utf-8", ".md"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}
	f, ok := exportFormats[format]
	if !ok {
		jsonError(w, fmt.Sprintf("unsupported export format: %s", format), http.StatusBadRequest)
		return
	}

	var req struct {
		Title   string           `json:"title"`
		Content doctree.Document `json:"content"`
	}
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	name := sanitizeFilename(req.Title)
	if req.Title == "" {
		name = "vorlage"
	}

	var body []byte
	switch format {
	case "txt":
		body = []byte(render.PlainText(req.Content))
	case "md":
		body = []byte(render.Markdown(req.Content))
	case "docx":
		var buf bytes.Buffer
		if err := render.DOCX(req.Content, &buf); err != nil {
			s.log.Error("docx export failed", "error", err)
			jsonError(w, "export failed", http.StatusInternalServerError)
			return
		}
		body = buf.Bytes()
	}

	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+f.ext))
	w.Write(body)
}
