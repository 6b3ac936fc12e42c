package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/mietdoc/internal/api"
	"github.com/dgallion1/mietdoc/internal/config"
	"github.com/dgallion1/mietdoc/internal/pipeline"
	"github.com/dgallion1/mietdoc/internal/stats"
	"github.com/dgallion1/mietdoc/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := api.NewEngine(cfg, log)
	if err != nil {
		log.Error("engine setup failed", "error", err)
		os.Exit(1)
	}
	st := stats.NewGeneration(time.Hour)

	// Template store is optional.
	var templates api.TemplateStore
	var sc *store.Client
	if cfg.StoreEnabled() {
		sc = store.NewClient(cfg.StoreURL, cfg.StoreAPIKey)
		templates = sc
	} else {
		log.Info("template store not configured, stored template routes disabled")
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, eng.Bulk, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(eng, orch, templates, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if sc != nil {
			sc.Close()
		}
	}()

	log.Info("starting mietdoc", "port", cfg.Port, "locale", cfg.Locale, "store", cfg.StoreEnabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
