package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

// ProcessDeps wires the internal trigger endpoint.
type ProcessDeps struct {
	Store store.Store
	Cache cache.Cache
	Start func(jobID uuid.UUID)
	Log   *slog.Logger
}

// NewProcessHandler returns the handler for POST /internal/v1/process. It
// accepts the trigger, starts the worker goroutine, and returns 202 without
// waiting. The cached status is only a cheap duplicate filter; the row CAS
// in the worker is what actually guarantees single execution.
func NewProcessHandler(deps ProcessDeps) http.HandlerFunc {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID uuid.UUID `json:"job_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == uuid.Nil {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "job_id is required", nil)
			return
		}

		if status, found, err := deps.Cache.GetJobStatus(r.Context(), req.JobID); err == nil && found &&
			status != models.JobStatusQueued {
			// The cache can be stale (a retry may have flipped the row back
			// to queued without the cache write landing), so a trigger is
			// only dropped when the row agrees.
			job, jerr := deps.Store.GetJobInternal(r.Context(), req.JobID)
			if jerr == nil && job.Status != models.JobStatusQueued {
				log.Info("duplicate trigger suppressed",
					"job_id", req.JobID, "status", job.Status)
				response.Accepted(w, map[string]any{
					"job_id": req.JobID,
					"status": job.Status,
				})
				return
			}
			log.Info("stale cached status ignored",
				"job_id", req.JobID, "cached_status", status)
		}

		go deps.Start(req.JobID)

		response.Accepted(w, map[string]any{
			"job_id": req.JobID,
			"status": models.JobStatusQueued,
		})
	}
}
