package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/doclens/doclens/internal/api/middleware"
	"github.com/doclens/doclens/internal/quota"
	"github.com/doclens/doclens/pkg/models"
)

type uploadFixture struct {
	store *memStore
	cache *memCache
	blobs *memBlobs

	mu         sync.Mutex
	dispatched []uuid.UUID
	done       chan struct{}
}

func newUploadFixture() *uploadFixture {
	return &uploadFixture{
		store: newMemStore(),
		cache: newMemCache(),
		blobs: newMemBlobs(),
		done:  make(chan struct{}, 16),
	}
}

func (f *uploadFixture) dispatch(jobID uuid.UUID) {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, jobID)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *uploadFixture) handler(freeLimit int) http.HandlerFunc {
	return NewUploadHandler(UploadDeps{
		Store:          f.store,
		Blobs:          f.blobs,
		Cache:          f.cache,
		Quota:          quota.NewLedger(f.store, freeLimit, nil),
		Dispatch:       f.dispatch,
		MaxUploadBytes: 10 * 1024 * 1024,
	})
}

func multipartUpload(t *testing.T, fileName, contentType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + fileName + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r.WithContext(mw.SetOwnerID(r.Context(), "owner-1"))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code string, details map[string]any) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code, env.Error.Details
}

func TestUploadAcceptsDocument(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	f.handler(5).ServeHTTP(rec, multipartUpload(t, "notes.txt", "text/plain", []byte("hello")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "queued", data["status"])

	jobID, err := uuid.Parse(data["job_id"].(string))
	require.NoError(t, err)

	job, ok := f.store.get(jobID)
	require.True(t, ok)
	assert.Equal(t, "owner-1", job.OwnerID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "notes.txt", job.FileName)
	assert.Equal(t, int64(5), job.FileSize)
	assert.Equal(t, "text/plain", job.MediaType)

	// Blob stored under the job's key.
	blob, err := f.blobs.Get(t.Context(), job.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), blob)

	// Dispatch fired asynchronously.
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []uuid.UUID{jobID}, f.dispatched)
}

func TestUploadStampsCreationTime(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	before := time.Now().UTC()
	f.handler(5).ServeHTTP(rec, multipartUpload(t, "notes.txt", "text/plain", []byte("hello")))
	after := time.Now().UTC()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	jobID, err := uuid.Parse(decodeData(t, rec)["job_id"].(string))
	require.NoError(t, err)

	// The INSERT binds created_at/updated_at explicitly, so the handler
	// has to stamp them; a zero value here would reach the database.
	job, ok := f.store.get(jobID)
	require.True(t, ok)
	require.False(t, job.CreatedAt.IsZero())
	assert.WithinRange(t, job.CreatedAt, before, after)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)

	<-f.done
}

func TestUploadRequiresOwner(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	f.handler(5).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRejectsMissingFilePart(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("note", "no file here"))
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	r = r.WithContext(mw.SetOwnerID(r.Context(), "owner-1"))

	f.handler(5).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", code)
	assert.Equal(t, 0, f.store.jobCount())
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	f.handler(5).ServeHTTP(rec,
		multipartUpload(t, "malware.exe", "application/x-msdownload", []byte{0x4d, 0x5a}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", code)
	assert.Equal(t, 0, f.store.jobCount())
	assert.Equal(t, 0, f.blobs.objectCount())
}

func TestUploadFallsBackToExtension(t *testing.T) {
	f := newUploadFixture()
	rec := httptest.NewRecorder()

	// Generic content type; the .pdf extension decides.
	f.handler(5).ServeHTTP(rec,
		multipartUpload(t, "report.pdf", "application/octet-stream", []byte("%PDF-1.4")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	jobID, err := uuid.Parse(data["job_id"].(string))
	require.NoError(t, err)

	job, _ := f.store.get(jobID)
	assert.Equal(t, "application/pdf", job.MediaType)
	<-f.done
}

func TestUploadQuotaExhausted(t *testing.T) {
	f := newUploadFixture()
	h := f.handler(1)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "a.txt", "text/plain", []byte("first")))
	require.Equal(t, http.StatusOK, rec.Code)
	<-f.done

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "b.txt", "text/plain", []byte("second")))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	code, details := decodeError(t, rec)
	assert.Equal(t, "QUOTA_EXCEEDED", code)
	assert.Equal(t, true, details["requires_upgrade"])

	// The rejected upload left no partial state behind.
	assert.Equal(t, 1, f.store.jobCount())
	assert.Equal(t, 1, f.blobs.objectCount())
}

func TestUploadCleansUpBlobWhenJobInsertFails(t *testing.T) {
	f := newUploadFixture()
	f.store.createJobErr = assert.AnError

	rec := httptest.NewRecorder()
	f.handler(5).ServeHTTP(rec, multipartUpload(t, "a.txt", "text/plain", []byte("data")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, f.store.jobCount())
	assert.Equal(t, 0, f.blobs.objectCount(), "orphaned blob must be removed")
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.dispatched)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	f := newUploadFixture()
	h := NewUploadHandler(UploadDeps{
		Store:          f.store,
		Blobs:          f.blobs,
		Cache:          f.cache,
		Quota:          quota.NewLedger(f.store, 5, nil),
		Dispatch:       f.dispatch,
		MaxUploadBytes: 16,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "big.txt", "text/plain", bytes.Repeat([]byte("x"), 64)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.store.jobCount())
}
