package repo

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

// MemoryJobStore provides an in-memory implementation of domain.JobStore.
// It is intended for tests and development environments without Postgres.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

// NewMemoryJobStore constructs an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.Job), now: time.Now}
}

// SetClock overrides the store's notion of now. Test hook for expiry.
func (m *MemoryJobStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Create inserts a new job record.
func (m *MemoryJobStore) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(*job)
	return nil
}

// Get returns the job, applying expiry at read time.
func (m *MemoryJobStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Expired(m.now()) {
		return nil, domain.ErrNotFound
	}
	copied := cloneJob(job)
	return &copied, nil
}

// Update applies a partial-field update to a stored job.
func (m *MemoryJobStore) Update(_ context.Context, jobID string, upd domain.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.CurrentStep != nil {
		job.CurrentStep = *upd.CurrentStep
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.Result != nil {
		result := *upd.Result
		job.Result = &result
	}
	if upd.ErrorMessage != nil {
		job.ErrorMessage = *upd.ErrorMessage
	}
	if upd.StartedAt != nil {
		t := *upd.StartedAt
		job.StartedAt = &t
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		job.CompletedAt = &t
	}
	m.jobs[jobID] = job
	return nil
}

func cloneJob(job domain.Job) domain.Job {
	copied := job
	copied.ImageRefs = append([]domain.ImageRef(nil), job.ImageRefs...)
	if job.Result != nil {
		result := *job.Result
		result.Slides = append([]domain.Slide(nil), job.Result.Slides...)
		result.Platforms = append([]string(nil), job.Result.Platforms...)
		copied.Result = &result
	}
	return copied
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
