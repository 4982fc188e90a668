package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens/doclens/pkg/models"
)

type processFixture struct {
	store *memStore
	cache *memCache

	mu      sync.Mutex
	started []uuid.UUID
	done    chan struct{}
}

func newProcessFixture() *processFixture {
	return &processFixture{
		store: newMemStore(),
		cache: newMemCache(),
		done:  make(chan struct{}, 16),
	}
}

func (f *processFixture) seed(jobID uuid.UUID, status string) {
	f.store.put(&models.Job{
		ID:      jobID,
		OwnerID: "owner-1",
		Status:  status,
	})
}

func (f *processFixture) start(jobID uuid.UUID) {
	f.mu.Lock()
	f.started = append(f.started, jobID)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *processFixture) handler() http.HandlerFunc {
	return NewProcessHandler(ProcessDeps{
		Store: f.store,
		Cache: f.cache,
		Start: f.start,
	})
}

func triggerRequest(t *testing.T, jobID any) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]any{"job_id": jobID})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/internal/v1/process", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestProcessStartsWorker(t *testing.T) {
	f := newProcessFixture()
	jobID := uuid.New()

	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, triggerRequest(t, jobID))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []uuid.UUID{jobID}, f.started)
}

func TestProcessRejectsMissingJobID(t *testing.T) {
	f := newProcessFixture()

	for name, body := range map[string]*bytes.Reader{
		"empty object": bytes.NewReader([]byte(`{}`)),
		"not json":     bytes.NewReader([]byte(`job_id=abc`)),
		"nil uuid":     bytes.NewReader([]byte(`{"job_id":"00000000-0000-0000-0000-000000000000"}`)),
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/internal/v1/process", body)
			rec := httptest.NewRecorder()
			f.handler().ServeHTTP(rec, r)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.started)
}

func TestProcessSuppressesDuplicateTrigger(t *testing.T) {
	f := newProcessFixture()
	jobID := uuid.New()
	f.seed(jobID, models.JobStatusProcessing)
	require.NoError(t, f.cache.SetJobStatus(context.Background(), jobID,
		models.JobStatusProcessing, time.Minute))

	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, triggerRequest(t, jobID))

	// Still accepted — triggers are idempotent from the caller's view —
	// but no second worker starts.
	assert.Equal(t, http.StatusAccepted, rec.Code)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.started)
}

func TestProcessStaleCachedStatusDoesNotStrandQueuedJob(t *testing.T) {
	f := newProcessFixture()
	jobID := uuid.New()

	// A retry flipped the row back to queued, but the cache write was
	// lost and still holds the old terminal status.
	f.seed(jobID, models.JobStatusQueued)
	require.NoError(t, f.cache.SetJobStatus(context.Background(), jobID,
		models.JobStatusFailed, time.Minute))

	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, triggerRequest(t, jobID))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []uuid.UUID{jobID}, f.started)
}

func TestProcessQueuedStatusInCacheStillStarts(t *testing.T) {
	f := newProcessFixture()
	jobID := uuid.New()
	require.NoError(t, f.cache.SetJobStatus(context.Background(), jobID,
		models.JobStatusQueued, time.Minute))

	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, triggerRequest(t, jobID))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.started, 1)
}
