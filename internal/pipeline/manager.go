package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fableforge/fableforge/internal/store"
)

// CollectionJob is the job collection in the document store.
const CollectionJob = "GenerationJob"

const jobFields = "book_id kind status progress step error warnings created_at completed_at"

// retainFinished caps how many terminal jobs stay in memory. Status polls
// right after completion hit the live record; older finished jobs are
// evicted and served from the store, so memory stays bounded.
const retainFinished = 64

// Manager owns job records. Jobs created in this process live in memory as
// the source of truth; every change is mirrored to the store through the
// write sink so generation never blocks on a store round trip. Jobs from
// earlier processes are served from the store.
type Manager struct {
	client *store.Client
	sink   *store.Sink
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*Job
}

// NewManager creates a job manager. The sink is optional; without it the
// manager still tracks jobs in memory but persists only the create.
func NewManager(client *store.Client, sink *store.Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: client,
		sink:   sink,
		logger: logger,
		active: make(map[string]*Job),
	}
}

// Create opens a new pending job for a book.
func (m *Manager) Create(ctx context.Context, bookID string, kind Kind) (*Job, error) {
	job := &Job{
		BookID:    bookID,
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	docID, err := m.client.Create(ctx, CollectionJob, map[string]any{
		"book_id":    job.BookID,
		"kind":       string(job.Kind),
		"status":     string(job.Status),
		"progress":   0,
		"created_at": job.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	job.ID = docID

	m.mu.Lock()
	m.active[docID] = job
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", docID, "book_id", bookID, "kind", kind)
	return job.clone(), nil
}

// Get returns a job's current state, preferring the live in-memory record
// over the store.
func (m *Manager) Get(ctx context.Context, jobID string) (*Job, error) {
	m.mu.Lock()
	if job, ok := m.active[jobID]; ok {
		defer m.mu.Unlock()
		return job.clone(), nil
	}
	m.mu.Unlock()

	doc, err := m.client.Get(ctx, CollectionJob, jobID, jobFields)
	if err != nil {
		return nil, err
	}
	return parseJob(doc), nil
}

// Progress moves a job forward. The first update flips pending to
// in_progress; a progress value below the current one is raised to it so
// progress never decreases. Updates to terminal jobs are rejected.
func (m *Manager) Progress(ctx context.Context, jobID string, progress int, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.active[jobID]
	if !ok {
		return fmt.Errorf("job %s is not active", jobID)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}
	if progress < job.Progress {
		progress = job.Progress
	}
	if progress > ProgressDone {
		progress = ProgressDone
	}
	job.Status = StatusInProgress
	job.Progress = progress
	job.Step = step

	m.flush(job, map[string]any{
		"status":   string(job.Status),
		"progress": job.Progress,
		"step":     job.Step,
	})
	return nil
}

// Warn records a non-fatal step failure on the job.
func (m *Manager) Warn(ctx context.Context, jobID, warning string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.active[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Warnings = append(job.Warnings, warning)
	m.logger.Warn("job warning", "job_id", jobID, "warning", warning)

	m.flush(job, map[string]any{
		"warnings": joinWarnings(job.Warnings),
	})
}

// Complete marks a job successful at full progress.
func (m *Manager) Complete(ctx context.Context, jobID string) error {
	return m.finish(jobID, StatusCompleted, "")
}

// Fail marks a job failed with a human-readable cause.
func (m *Manager) Fail(ctx context.Context, jobID, errMsg string) error {
	return m.finish(jobID, StatusFailed, errMsg)
}

func (m *Manager) finish(jobID string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.active[jobID]
	if !ok {
		return fmt.Errorf("job %s is not active", jobID)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}

	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	if status == StatusCompleted {
		job.Progress = ProgressDone
		job.Step = "done"
	} else {
		job.Error = errMsg
	}

	update := map[string]any{
		"status":       string(job.Status),
		"progress":     job.Progress,
		"step":         job.Step,
		"completed_at": now,
	}
	if job.Error != "" {
		update["error"] = job.Error
	}
	if len(job.Warnings) > 0 {
		update["warnings"] = joinWarnings(job.Warnings)
	}
	m.flush(job, update)
	m.evictFinishedLocked()
	m.logger.Info("job finished", "job_id", jobID, "status", status, "warnings", len(job.Warnings))
	return nil
}

// evictFinishedLocked drops the oldest terminal jobs beyond retainFinished.
// Callers hold m.mu.
func (m *Manager) evictFinishedLocked() {
	finished := 0
	for _, j := range m.active {
		if j.Status.Terminal() {
			finished++
		}
	}
	for finished > retainFinished {
		var oldest *Job
		for _, j := range m.active {
			if !j.Status.Terminal() {
				continue
			}
			if oldest == nil || j.CompletedAt.Before(*oldest.CompletedAt) {
				oldest = j
			}
		}
		delete(m.active, oldest.ID)
		finished--
	}
}

// flush mirrors an update to the store. Callers hold m.mu.
func (m *Manager) flush(job *Job, update map[string]any) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Send(store.WriteOp{
		Collection: CollectionJob,
		DocID:      job.ID,
		Document:   update,
		Op:         store.OpUpdate,
	}); err != nil {
		m.logger.Warn("job update not persisted", "job_id", job.ID, "error", err)
	}
}

func parseJob(doc map[string]any) *Job {
	job := &Job{
		ID:       str(doc, "_docID"),
		BookID:   str(doc, "book_id"),
		Kind:     Kind(str(doc, "kind")),
		Status:   Status(str(doc, "status")),
		Progress: num(doc, "progress"),
		Step:     str(doc, "step"),
		Error:    str(doc, "error"),
		Warnings: splitWarnings(str(doc, "warnings")),
	}
	if ts := str(doc, "created_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			job.CreatedAt = t
		}
	}
	if ts := str(doc, "completed_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			job.CompletedAt = &t
		}
	}
	return job
}

func str(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func num(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
