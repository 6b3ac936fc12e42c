// Package bulk generates one processed document per entity in a collection.
package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

// Processor runs one template against one context.
type Processor interface {
	Process(doc doctree.Document, ctx resolve.Context) processor.Result
}

// EntityResult is the outcome for one entity. Result is nil when the entity
// was never processed (empty entity, cancellation).
type EntityResult struct {
	Index    int               `json:"index" yaml:"index"`
	EntityID string            `json:"entityId" yaml:"entityId"`
	Success  bool              `json:"success" yaml:"success"`
	Result   *processor.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Reason   string            `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Result aggregates a batch. Counts are computed after every entity has
// been attempted; a partial batch is not rolled back.
type Result struct {
	PerEntityResults []EntityResult `json:"perEntityResults" yaml:"perEntityResults"`
	SucceededCount   int            `json:"succeededCount" yaml:"succeededCount"`
	FailedCount      int            `json:"failedCount" yaml:"failedCount"`
}

// ProgressFunc is called after each entity with the number finished so far.
// Calls are serialized.
type ProgressFunc func(done, total int)

// Coordinator fans a template out over entities.
type Coordinator struct {
	proc  Processor
	limit int
	log   *slog.Logger
}

// NewCoordinator creates a coordinator that processes up to concurrency
// entities at once. concurrency < 1 means one at a time.
func NewCoordinator(proc Processor, concurrency int, log *slog.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{proc: proc, limit: concurrency, log: log}
}

// Generate runs the template once per entity with {category: entity}
// overlaid on base. One entity's failure never aborts the others.
func (c *Coordinator) Generate(ctx context.Context, doc doctree.Document, base resolve.Context, category catalog.Category, entities []resolve.Entity) Result {
	return c.GenerateWithProgress(ctx, doc, base, category, entities, nil)
}

// GenerateWithProgress is Generate with a progress callback.
func (c *Coordinator) GenerateWithProgress(ctx context.Context, doc doctree.Document, base resolve.Context, category catalog.Category, entities []resolve.Entity, progress ProgressFunc) Result {
	start := time.Now()
	results := make([]EntityResult, len(entities))

	var (
		mu   sync.Mutex
		done int
	)
	finish := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		done++
		progress(done, len(entities))
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, e := range entities {
		g.Go(func() error {
			results[i] = c.one(ctx, doc, base, category, i, e)
			finish()
			return nil
		})
	}
	_ = g.Wait()

	res := Result{PerEntityResults: results}
	for _, r := range results {
		if r.Success {
			res.SucceededCount++
		} else {
			res.FailedCount++
		}
	}
	c.log.Info("bulk generation done",
		"category", category,
		"entities", len(entities),
		"succeeded", res.SucceededCount,
		"failed", res.FailedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (c *Coordinator) one(ctx context.Context, doc doctree.Document, base resolve.Context, category catalog.Category, i int, e resolve.Entity) (out EntityResult) {
	out = EntityResult{Index: i, EntityID: EntityID(e, i)}
	defer func() {
		if rec := recover(); rec != nil {
			out.Success = false
			out.Result = nil
			out.Reason = fmt.Sprintf("panic: %v", rec)
		}
		if !out.Success {
			c.log.Warn("entity failed", "entity", out.EntityID, "index", i, "reason", out.Reason)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Reason = "canceled: " + err.Error()
		return out
	}
	if e == nil {
		out.Reason = "entity is empty"
		return out
	}

	res := c.proc.Process(doc, base.With(category, e))
	out.Result = &res
	out.Success = res.Success
	if !res.Success {
		out.Reason = strings.Join(res.Errors, "; ")
	}
	return out
}

// EntityID returns the entity's "id" field as a string, or "#<index+1>"
// when it has none.
func EntityID(e resolve.Entity, index int) string {
	switch v := e["id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return "#" + strconv.Itoa(index+1)
}
