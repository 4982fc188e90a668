package handler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

// memStore is an in-memory Store mirroring the CAS transition semantics of
// the Postgres implementation.
type memStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*models.Job
	quotas map[string]*models.QuotaRecord

	createJobErr error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:   make(map[uuid.UUID]*models.Job),
		quotas: make(map[string]*models.QuotaRecord),
	}
}

func (m *memStore) put(job *models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *memStore) get(id uuid.UUID) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

func (m *memStore) jobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *memStore) Ping(_ context.Context) error { return nil }
func (m *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }

func (m *memStore) CreateJob(_ context.Context, job *models.Job) error {
	if m.createJobErr != nil {
		return m.createJobErr
	}
	// Store exactly what the handler handed over; the real INSERT binds
	// every column, so nothing is backfilled here either.
	cp := *job
	m.put(&cp)
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) GetJobInternal(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) TransitionJob(_ context.Context, id uuid.UUID, from, to string, opts ...store.TransitionOption) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || job.Status != from {
		return false, nil
	}

	var changes store.TransitionChanges
	for _, opt := range opts {
		opt(&changes)
	}

	job.Status = to
	job.UpdatedAt = time.Now()
	switch to {
	case models.JobStatusCompleted:
		job.Result = changes.Result
		job.ErrorMessage = nil
	case models.JobStatusFailed:
		job.Result = nil
		job.ErrorMessage = changes.ErrorMessage
	case models.JobStatusQueued:
		job.Result = nil
		job.ErrorMessage = nil
		job.ProcessedAt = nil
	}
	return true, nil
}

func (m *memStore) DeleteJob(_ context.Context, id uuid.UUID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *memStore) EnsureQuota(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotas[ownerID]; !ok {
		m.quotas[ownerID] = &models.QuotaRecord{OwnerID: ownerID, PlanTier: models.PlanFree}
	}
	return nil
}

func (m *memStore) GetQuota(_ context.Context, ownerID string) (*models.QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.quotas[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) IncrementQuotaUsage(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.quotas[ownerID]; ok {
		rec.UsedJobs++
	}
	return nil
}

// memCache records job status writes.
type memCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMemCache() *memCache {
	return &memCache{statuses: make(map[uuid.UUID]string)}
}

func (c *memCache) Ping(_ context.Context) error                                     { return nil }
func (c *memCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *memCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *memCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *memCache) IncrWindow(_ context.Context, _ string, w time.Duration) (int64, time.Duration, error) {
	return 1, w, nil
}

func (c *memCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *memCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

// memBlobs is an in-memory blob store with injectable failures.
type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deletes   int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) objectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
