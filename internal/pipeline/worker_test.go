package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/config"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/resolve"
	"github.com/dgallion1/mietdoc/internal/stats"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newCoordinator(t *testing.T) *bulk.Coordinator {
	t.Helper()
	cat := catalog.Default()
	r, err := resolve.New(cat, resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return bulk.NewCoordinator(processor.New(cat, r), 2, discardLogger())
}

func TestWorker_Process(t *testing.T) {
	st := stats.NewGeneration(time.Hour)
	w := NewWorker(newCoordinator(t), st, discardLogger())

	job := NewJob(Request{
		Content:  doctree.Legacy("Hallo @mieter.name, @mieter.telefon"),
		Category: catalog.Mieter,
		Entities: []resolve.Entity{{"id": "m1", "name": "Max"}, nil, {"id": "m3", "name": "Erika"}},
	})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Errorf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Progress.Succeeded != 2 || snap.Progress.Failed != 1 {
		t.Errorf("unexpected counts %+v", snap.Progress)
	}
	if snap.Progress.EntitiesProcessed != 3 {
		t.Errorf("expected 3 processed, got %d", snap.Progress.EntitiesProcessed)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "entity #2: entity is empty" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}

	res := job.Result()
	if res == nil {
		t.Fatal("expected result")
	}
	if got := res.PerEntityResults[0].Result.ProcessedContent.Text(); got != "Hallo Max, [Mieter Telefon]" {
		t.Errorf("expected %q, got %q", "Hallo Max, [Mieter Telefon]", got)
	}

	top := st.TopUnresolved(1)
	if len(top) != 1 || top[0].ID != "mieter.telefon" || top[0].Count != 2 {
		t.Errorf("unexpected unresolved stats %v", top)
	}
	if st.Bulk.Snapshot().Count != 1 {
		t.Errorf("expected one bulk sample, got %d", st.Bulk.Snapshot().Count)
	}
}

func TestWorker_EmptyBatchCompletes(t *testing.T) {
	w := NewWorker(newCoordinator(t), nil, discardLogger())
	job := NewJob(Request{Content: doctree.Legacy("x"), Category: catalog.Mieter})
	w.Process(context.Background(), job)

	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, s)
	}
}

func TestWorker_CanceledFails(t *testing.T) {
	w := NewWorker(newCoordinator(t), nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := NewJob(Request{
		Content:  doctree.Legacy("x"),
		Category: catalog.Mieter,
		Entities: []resolve.Entity{{"name": "a"}},
	})
	w.Process(ctx, job)

	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, s)
	}
}

func TestFinalStatus(t *testing.T) {
	tests := []struct {
		ok, failed int
		want       JobStatus
	}{
		{3, 0, StatusCompleted},
		{0, 0, StatusCompleted},
		{2, 1, StatusPartial},
		{0, 2, StatusFailed},
	}
	for _, tt := range tests {
		got := finalStatus(bulk.Result{SucceededCount: tt.ok, FailedCount: tt.failed})
		if got != tt.want {
			t.Errorf("%d/%d: expected %q, got %q", tt.ok, tt.failed, tt.want, got)
		}
	}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, newCoordinator(t), nil, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(Request{
		Content:  doctree.Legacy("@mieter.name"),
		Category: catalog.Mieter,
		Entities: []resolve.Entity{{"name": "Max"}},
	})
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, s)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, newCoordinator(t), nil, discardLogger())

	first := NewJob(Request{Content: doctree.Legacy("a"), Category: catalog.Mieter})
	second := NewJob(Request{Content: doctree.Legacy("b"), Category: catalog.Mieter})
	if err := o.Submit(first); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if s := second.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected rejected job to be %q, got %q", StatusFailed, s)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
