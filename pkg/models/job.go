package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one document's processing lifecycle. The API returns a job id on
// POST /api/v1/jobs; the client polls GET /api/v1/jobs/{job_id} until status
// is completed or failed. The row in Postgres is the single source of truth
// for both the worker and polling clients.
type Job struct {
	ID           uuid.UUID         `db:"id"            json:"id"`
	OwnerID      string            `db:"owner_id"      json:"owner_id"`
	BlobKey      string            `db:"blob_key"      json:"-"`
	FileName     string            `db:"file_name"     json:"file_name"`
	FileSize     int64             `db:"file_size"     json:"file_size"`
	MediaType    string            `db:"media_type"    json:"media_type"`
	Status       string            `db:"status"        json:"status"`
	Result       *DocumentAnalysis `db:"result"        json:"result,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error,omitempty"`
	CreatedAt    time.Time         `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at"    json:"updated_at"`
	ProcessedAt  *time.Time        `db:"processed_at"  json:"processed_at,omitempty"`
}

// Terminal reports whether the job has reached a state from which no further
// automatic transition occurs.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
