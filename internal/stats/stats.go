// Package stats keeps rolling generation metrics for the stats endpoint.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// Window tracks call latencies within a rolling window.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

// NewWindow creates a window keeping samples for maxAge (default 1h).
func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one call. Negative durations are clamped to zero.
func (w *Window) Record(d time.Duration, failed bool) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	w.samples = append(w.samples, sample{timestamp: now, durationMs: ms, failed: failed})
}

func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	if len(w.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(w.samples))
	var (
		sum      int64
		failures int
	)
	for _, sm := range w.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		if sm.failed {
			failures++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count:    len(values),
		Failures: failures,
		MinMs:    values[0],
		MaxMs:    values[len(values)-1],
		AvgMs:    float64(sum) / float64(len(values)),
		P50Ms:    percentile(values, 50),
		P95Ms:    percentile(values, 95),
		P99Ms:    percentile(values, 99),
	}
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	writeIdx := 0
	for _, sm := range w.samples {
		if !sm.timestamp.Before(cutoff) {
			w.samples[writeIdx] = sm
			writeIdx++
		}
	}
	w.samples = w.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// Generation groups the windows reported by GET /api/stats/generation and
// counts which placeholders most often stay unresolved.
type Generation struct {
	Process  *Window
	Bulk     *Window
	Validate *Window

	mu         sync.Mutex
	unresolved map[string]int
}

// NewGeneration creates windows sharing maxAge.
func NewGeneration(maxAge time.Duration) *Generation {
	return &Generation{
		Process:    NewWindow(maxAge),
		Bulk:       NewWindow(maxAge),
		Validate:   NewWindow(maxAge),
		unresolved: make(map[string]int),
	}
}

// CountUnresolved records ids a processing run could not resolve.
func (g *Generation) CountUnresolved(ids []string) {
	if len(ids) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.unresolved[id]++
	}
}

// IDCount is one entry of TopUnresolved.
type IDCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// TopUnresolved returns the n most frequent unresolved ids, highest first,
// ties broken by id.
func (g *Generation) TopUnresolved(n int) []IDCount {
	g.mu.Lock()
	out := make([]IDCount, 0, len(g.unresolved))
	for id, c := range g.unresolved {
		out = append(out, IDCount{ID: id, Count: c})
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// GenerationSnapshot is the body of the stats endpoint.
type GenerationSnapshot struct {
	Process       Snapshot  `json:"process"`
	Bulk          Snapshot  `json:"bulk"`
	Validate      Snapshot  `json:"validate"`
	TopUnresolved []IDCount `json:"top_unresolved"`
}

func (g *Generation) Snapshot() GenerationSnapshot {
	return GenerationSnapshot{
		Process:       g.Process.Snapshot(),
		Bulk:          g.Bulk.Snapshot(),
		Validate:      g.Validate.Snapshot(),
		TopUnresolved: g.TopUnresolved(10),
	}
}
