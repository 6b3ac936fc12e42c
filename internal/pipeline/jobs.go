package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/mietdoc/internal/bulk"
	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

// JobStatus represents the state of a bulk generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Request is the input of a bulk job.
type Request struct {
	TemplateID string
	Content    doctree.Document
	Context    resolve.Context
	Category   catalog.Category
	Entities   []resolve.Entity
}

// Job tracks the state of a single bulk generation.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	TemplateID string `json:"template_id,omitempty"`

	Status   JobStatus        `json:"status"`
	Phase    string           `json:"phase"`
	Category catalog.Category `json:"category"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	request Request
	result  *bulk.Result
	errors  []string
}

// Progress tracks generation progress.
type Progress struct {
	TotalEntities     int      `json:"total_entities"`
	EntitiesProcessed int      `json:"entities_processed"`
	Succeeded         int      `json:"succeeded"`
	Failed            int      `json:"failed"`
	Errors            []string `json:"errors"`
}

// NewJob creates a queued job for req.
func NewJob(req Request) *Job {
	now := time.Now()
	hash := ""
	if data, err := req.Content.MarshalJSON(); err == nil {
		hash = ContentHashHex(data)
	}
	return &Job{
		ID:          uuid.NewString(),
		TemplateID:  req.TemplateID,
		Status:      StatusQueued,
		Phase:       "queued",
		Category:    req.Category,
		Progress:    Progress{TotalEntities: len(req.Entities)},
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
		request:     req,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetProgress records how many entities have finished. It matches
// bulk.ProgressFunc.
func (j *Job) SetProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.EntitiesProcessed = done
	j.Progress.TotalEntities = total
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished batch and its counts.
func (j *Job) SetResult(res bulk.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = &res
	j.Progress.Succeeded = res.SucceededCount
	j.Progress.Failed = res.FailedCount
	j.Progress.EntitiesProcessed = len(res.PerEntityResults)
	j.UpdatedAt = time.Now()
}

// Result returns the finished batch, or nil while the job is running.
func (j *Job) Result() *bulk.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Request returns the job input.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string           `json:"job_id"`
	TemplateID string           `json:"template_id,omitempty"`
	Status     JobStatus        `json:"status"`
	Phase      string           `json:"phase"`
	Category   catalog.Category `json:"category"`
	Progress   Progress         `json:"progress"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:         j.ID,
		TemplateID: j.TemplateID,
		Status:     j.Status,
		Phase:      j.Phase,
		Category:   j.Category,
		Progress: Progress{
			TotalEntities:     j.Progress.TotalEntities,
			EntitiesProcessed: j.Progress.EntitiesProcessed,
			Succeeded:         j.Progress.Succeeded,
			Failed:            j.Progress.Failed,
			Errors:            errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
