package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/doclens/doclens/internal/api/middleware"
	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/blob"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

// JobsDeps wires the job read/retry/delete handlers.
type JobsDeps struct {
	Store    store.Store
	Blobs    blob.Store
	Cache    cache.Cache
	Dispatch func(jobID uuid.UUID)
	Log      *slog.Logger
}

type jobView struct {
	ID          uuid.UUID                `json:"id"`
	Status      string                   `json:"status"`
	FileName    string                   `json:"file_name"`
	FileSize    int64                    `json:"file_size"`
	MediaType   string                   `json:"media_type"`
	CreatedAt   time.Time                `json:"created_at"`
	ProcessedAt *time.Time               `json:"processed_at"`
	Result      *models.DocumentAnalysis `json:"result"`
	Error       *string                  `json:"error"`
}

func viewOf(job *models.Job) jobView {
	return jobView{
		ID:          job.ID,
		Status:      job.Status,
		FileName:    job.FileName,
		FileSize:    job.FileSize,
		MediaType:   job.MediaType,
		CreatedAt:   job.CreatedAt,
		ProcessedAt: job.ProcessedAt,
		Result:      job.Result,
		Error:       job.ErrorMessage,
	}
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}.
//
// Polling contract: clients poll this endpoint at a fixed 2-5s interval
// until status is completed or failed, capping attempts (60 by default)
// before treating the job as timed out client-side. Result and error are
// null until the job reaches the corresponding terminal state.
func NewJobStatusHandler(deps JobsDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadOwnedJob(w, r, deps.Store)
		if !ok {
			return
		}
		response.JSON(w, viewOf(job))
	}
}

// NewJobRetryHandler returns the handler for POST /api/v1/jobs/{jobID}/retry.
// Retry is only legal from failed; the conditional update clears the stale
// result and error before the job is dispatched again.
func NewJobRetryHandler(deps JobsDeps) http.HandlerFunc {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadOwnedJob(w, r, deps.Store)
		if !ok {
			return
		}

		moved, err := deps.Store.TransitionJob(r.Context(), job.ID,
			models.JobStatusFailed, models.JobStatusQueued)
		if err != nil {
			log.Error("retry job", "job_id", job.ID, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not retry the job", nil)
			return
		}
		if !moved {
			response.Error(w, http.StatusConflict,
				"CONFLICT", "Only failed jobs can be retried",
				map[string]any{"status": job.Status})
			return
		}

		if err := deps.Cache.SetJobStatus(r.Context(), job.ID, models.JobStatusQueued, 30*time.Minute); err != nil {
			log.Warn("cache job status", "job_id", job.ID, "error", err)
		}

		go deps.Dispatch(job.ID)

		log.Info("job retried", "job_id", job.ID, "owner_id", job.OwnerID)
		response.JSON(w, map[string]any{
			"job_id": job.ID,
			"status": models.JobStatusQueued,
		})
	}
}

// NewJobDeleteHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
// The blob delete is best effort: storage garbage is tolerable, a row
// pointing at nothing is not, so the row goes last.
func NewJobDeleteHandler(deps JobsDeps) http.HandlerFunc {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadOwnedJob(w, r, deps.Store)
		if !ok {
			return
		}

		if err := deps.Blobs.Delete(r.Context(), job.BlobKey); err != nil {
			log.Warn("delete blob", "job_id", job.ID, "blob_key", job.BlobKey, "error", err)
		}

		if err := deps.Store.DeleteJob(r.Context(), job.ID, job.OwnerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				jobNotFound(w)
				return
			}
			log.Error("delete job", "job_id", job.ID, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not delete the job", nil)
			return
		}

		if err := deps.Cache.Delete(context.Background(), cache.JobStatusKey(job.ID)); err != nil {
			log.Warn("evict job status", "job_id", job.ID, "error", err)
		}

		log.Info("job deleted", "job_id", job.ID, "owner_id", job.OwnerID)
		response.JSON(w, map[string]any{"deleted": true})
	}
}

// loadOwnedJob parses the path id and loads the job scoped to the
// authenticated owner. Missing and foreign jobs produce the same 404.
func loadOwnedJob(w http.ResponseWriter, r *http.Request, s store.Store) (*models.Job, bool) {
	ownerID, ok := mw.GetOwnerID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
		return nil, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		jobNotFound(w)
		return nil, false
	}

	job, err := s.GetJob(r.Context(), jobID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jobNotFound(w)
			return nil, false
		}
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not load the job", nil)
		return nil, false
	}
	return job, true
}

func jobNotFound(w http.ResponseWriter) {
	response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
}
