// Package handler holds the HTTP handlers for the public and internal APIs.
package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	mw "github.com/doclens/doclens/internal/api/middleware"
	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/blob"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/quota"
	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

// allowedMediaTypes is the upload allow-list. Everything else is rejected
// before any quota or storage work happens.
var allowedMediaTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"text/csv":        true,
	"application/rtf": true,
	"text/rtf":        true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
}

// extensionMediaTypes maps file extensions to media types for clients that
// send a generic Content-Type on the multipart part.
var extensionMediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".rtf":  "application/rtf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// UploadDeps wires the upload handler's collaborators. Dispatch runs after
// the response is written; it must not block the handler.
type UploadDeps struct {
	Store          store.Store
	Blobs          blob.Store
	Cache          cache.Cache
	Quota          *quota.Ledger
	Dispatch       func(jobID uuid.UUID)
	MaxUploadBytes int64
	Log            *slog.Logger
}

// NewUploadHandler returns the handler for POST /api/v1/jobs. Order matters:
// validation, then admission, then blob write, then the job row. A job row
// never exists without its blob, so a failed request leaves nothing for the
// worker to trip over.
func NewUploadHandler(deps UploadDeps) http.HandlerFunc {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+4096)
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "A multipart \"file\" part is required", nil)
			return
		}
		defer file.Close()

		if header.Size > deps.MaxUploadBytes {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "File exceeds the maximum upload size",
				map[string]any{"max_bytes": deps.MaxUploadBytes})
			return
		}

		mediaType := resolveMediaType(header.Header.Get("Content-Type"), header.Filename)
		if !allowedMediaTypes[mediaType] {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "Unsupported file type",
				map[string]any{"media_type": mediaType})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, deps.MaxUploadBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "Could not read uploaded file", nil)
			return
		}
		if int64(len(data)) > deps.MaxUploadBytes {
			response.Error(w, http.StatusBadRequest,
				"VALIDATION_ERROR", "File exceeds the maximum upload size",
				map[string]any{"max_bytes": deps.MaxUploadBytes})
			return
		}

		adm := deps.Quota.CheckAdmission(r.Context(), ownerID)
		if !adm.Allowed {
			response.Error(w, http.StatusForbidden,
				"QUOTA_EXCEEDED", "Free tier job limit reached",
				map[string]any{"requires_upgrade": true})
			return
		}

		key := blob.ObjectKey(ownerID, header.Filename)
		if err := deps.Blobs.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
			log.Error("store upload", "owner_id", ownerID, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not store the uploaded file", nil)
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			BlobKey:   key,
			FileName:  header.Filename,
			FileSize:  int64(len(data)),
			MediaType: mediaType,
			Status:    models.JobStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Store.CreateJob(r.Context(), job); err != nil {
			log.Error("create job", "owner_id", ownerID, "error", err)
			// Best effort: don't leave an orphaned blob behind.
			if derr := deps.Blobs.Delete(context.Background(), key); derr != nil {
				log.Warn("orphaned blob cleanup failed", "blob_key", key, "error", derr)
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not create the job", nil)
			return
		}

		deps.Quota.RecordUsage(r.Context(), ownerID)

		if err := deps.Cache.SetJobStatus(r.Context(), job.ID, models.JobStatusQueued, 30*time.Minute); err != nil {
			log.Warn("cache job status", "job_id", job.ID, "error", err)
		}

		go deps.Dispatch(job.ID)

		log.Info("job accepted",
			"job_id", job.ID,
			"owner_id", ownerID,
			"media_type", mediaType,
			"file_size", job.FileSize)

		response.JSON(w, map[string]any{
			"job_id": job.ID,
			"status": models.JobStatusQueued,
		})
	}
}

// resolveMediaType normalizes the part's Content-Type and falls back to the
// file extension when the client sent nothing useful.
func resolveMediaType(contentType, fileName string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil &&
			mt != "application/octet-stream" && mt != "" {
			return mt
		}
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if mt, ok := extensionMediaTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
