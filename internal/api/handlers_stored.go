package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/mietdoc/internal/pipeline"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/store"
	"github.com/dgallion1/mietdoc/internal/validate"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{Category: r.URL.Query().Get("category")}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	list, err := s.templates.ListTemplates(r.Context(), opts)
	if err != nil {
		s.log.Error("list templates failed", "error", err)
		jsonError(w, "failed to list templates: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

// handleCreateTemplate validates and stores a template. Invalid templates
// are rejected with the validation result; the referenced context
// categories are stored alongside the content.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		validate.Input
	}
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}

	res := s.engine.Validator.Validate(req.Input)
	if !res.IsValid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "template is invalid",
			"validation": res,
		})
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	content, err := req.Content.MarshalJSON()
	if err != nil {
		jsonError(w, "encode content: "+err.Error(), http.StatusInternalServerError)
		return
	}
	tpl := store.Template{
		ID:                   id,
		Title:                req.Title,
		Category:             req.Category,
		Content:              req.Content,
		KontextAnforderungen: validate.RequiredContext(req.Content),
		ContentHash:          pipeline.ContentHashHex(content),
		UpdatedAt:            s.now().UTC(),
	}
	if err := s.templates.PutTemplate(r.Context(), tpl); err != nil {
		s.log.Error("store template failed", "template_id", id, "error", err)
		jsonError(w, "failed to store template: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"template":   tpl,
		"validation": res,
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleProcessStored(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context resolve.Context `json:"context"`
	}
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	tpl, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.process(tpl.Content, req.Context))
}

// handleGenerateStored runs a stored template over entities. With
// ?async=true the batch is queued as a job.
func (s *Server) handleGenerateStored(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeBody(w, r, s.cfg.MaxUploadBytes, &req) {
		return
	}
	if msg := s.checkGenerate(req); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	tpl, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	req.Content = tpl.Content

	if r.URL.Query().Get("async") == "true" {
		s.submit(w, pipeline.Request{
			TemplateID: tpl.ID,
			Content:    tpl.Content,
			Context:    s.withToday(req.Context),
			Category:   req.Category,
			Entities:   req.Entities,
		})
		return
	}
	writeJSON(w, http.StatusOK, s.generate(r, req))
}

func (s *Server) loadTemplate(w http.ResponseWriter, r *http.Request) (*store.Template, bool) {
	id := chi.URLParam(r, "id")
	tpl, err := s.templates.GetTemplate(r.Context(), id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			jsonError(w, "template not found", http.StatusNotFound)
			return nil, false
		}
		s.log.Error("get template failed", "template_id", id, "error", err)
		jsonError(w, "failed to load template: "+err.Error(), http.StatusBadGateway)
		return nil, false
	}
	return tpl, true
}
