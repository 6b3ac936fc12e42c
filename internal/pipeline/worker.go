package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/stats"
)

// Generator runs a template over a collection of entities.
type Generator interface {
	GenerateWithProgress(ctx context.Context, doc doctree.Document, base resolve.Context, category catalog.Category, entities []resolve.Entity, progress bulk.ProgressFunc) bulk.Result
}

// Worker processes a single bulk job.
type Worker struct {
	gen   Generator
	stats *stats.Generation
	log   *slog.Logger
}

func NewWorker(gen Generator, st *stats.Generation, log *slog.Logger) *Worker {
	return &Worker{gen: gen, stats: st, log: log}
}

// Process runs the job's batch and records the outcome.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "category", job.Category)
	req := job.Request()

	job.SetStatus(StatusGenerating, "generating")
	log.Info("bulk job started", "entities", len(req.Entities))

	start := time.Now()
	res := w.gen.GenerateWithProgress(ctx, req.Content, req.Context, req.Category, req.Entities, job.SetProgress)
	job.SetResult(res)

	for _, r := range res.PerEntityResults {
		if !r.Success {
			job.AddError(fmt.Sprintf("entity %s: %s", r.EntityID, failureReason(r)))
		}
		if w.stats != nil && r.Result != nil {
			w.stats.CountUnresolved(r.Result.UnresolvedPlaceholders)
		}
	}

	status := finalStatus(res)
	if ctx.Err() != nil && status != StatusCompleted {
		status = StatusFailed
	}
	if w.stats != nil {
		w.stats.Bulk.Record(time.Since(start), status == StatusFailed)
	}
	job.SetStatus(status, "done")
	log.Info("bulk job finished", "status", status, "succeeded", res.SucceededCount, "failed", res.FailedCount)
}

// finalStatus maps batch counts to a terminal status. An empty batch is
// complete.
func finalStatus(res bulk.Result) JobStatus {
	switch {
	case res.FailedCount == 0:
		return StatusCompleted
	case res.SucceededCount > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func failureReason(r bulk.EntityResult) string {
	if r.Reason != "" {
		return r.Reason
	}
	if r.Result != nil && len(r.Result.Errors) > 0 {
		return r.Result.Errors[0]
	}
	return "failed"
}
