package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/config"
	"github.com/dgallion1/mietdoc/internal/pipeline"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/stats"
	"github.com/dgallion1/mietdoc/internal/store"
	"github.com/dgallion1/mietdoc/internal/validate"
)

// Engine bundles the template engine components shared by all handlers.
type Engine struct {
	Catalog   *catalog.Catalog
	Processor *processor.Processor
	Validator *validate.Validator
	Bulk      *bulk.Coordinator
}

// NewEngine wires the default catalog, a resolver for cfg's locale and a
// bulk coordinator.
func NewEngine(cfg config.Config, log *slog.Logger) (*Engine, error) {
	cat := catalog.Default()
	r, err := resolve.New(cat, cfg.ResolveOptions())
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}
	proc := processor.New(cat, r)
	return &Engine{
		Catalog:   cat,
		Processor: proc,
		Validator: validate.New(cat),
		Bulk:      bulk.NewCoordinator(proc, cfg.BulkConcurrency, log),
	}, nil
}

// TemplateStore persists templates. *store.Client implements it.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*store.Template, error)
	PutTemplate(ctx context.Context, t store.Template) error
	ListTemplates(ctx context.Context, opts store.ListOptions) ([]store.Template, error)
}

// Server is the HTTP API server for mietdoc.
type Server struct {
	router       chi.Router
	engine       *Engine
	orchestrator *pipeline.Orchestrator
	templates    TemplateStore
	stats        *stats.Generation
	log          *slog.Logger
	cfg          config.Config
	now          func() time.Time
}

// NewServer creates and configures the HTTP server. templates may be nil,
// which disables the stored template routes.
func NewServer(eng *Engine, orch *pipeline.Orchestrator, templates TemplateStore, st *stats.Generation, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:       eng,
		orchestrator: orch,
		templates:    templates,
		stats:        st,
		log:          log,
		cfg:          cfg,
		now:          time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.MietdocAPIKey, s.log))

		r.Get("/api/placeholders", s.handleListPlaceholders)
		r.Get("/api/template-categories", s.handleTemplateCategories)

		r.Post("/api/templates/process", s.handleProcess)
		r.Post("/api/templates/validate", s.handleValidate)
		r.Post("/api/templates/placeholders", s.handleUsedPlaceholders)
		r.Post("/api/templates/context-check", s.handleContextCheck)
		r.Post("/api/templates/export", s.handleExport)

		r.Post("/api/templates/generate", s.handleGenerate)
		r.Post("/api/templates/generate/async", s.handleGenerateAsync)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)

		r.Post("/api/templates/import", s.handleImportTemplate)
		r.Post("/api/entities/import", s.handleImportEntities)

		r.Get("/api/stats/generation", s.handleGenerationStats)

		if s.templates != nil {
			r.Get("/api/templates", s.handleListTemplates)
			r.Post("/api/templates", s.handleCreateTemplate)
			r.Get("/api/templates/{id}", s.handleGetTemplate)
			r.Post("/api/templates/{id}/process", s.handleProcessStored)
			r.Post("/api/templates/{id}/generate", s.handleGenerateStored)
		}
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// withToday adds today's date as the datum entity when enabled and the
// caller supplied none.
func (s *Server) withToday(ctx resolve.Context) resolve.Context {
	if !s.cfg.InjectToday || ctx.Has(catalog.Datum) {
		return ctx
	}
	return ctx.With(catalog.Datum, resolve.Today(s.now()))
}
