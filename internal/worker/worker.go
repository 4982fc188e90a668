// Package worker drives jobs through the processing state machine:
// queued → processing → completed | failed.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/doclens/doclens/internal/ai"
	"github.com/doclens/doclens/internal/blob"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// Worker performs the download → extract → analyze → persist pipeline for
// one job per Process call. It acts with elevated privilege: jobs are
// loaded without an owner filter.
type Worker struct {
	store        store.Store
	cache        cache.Cache
	blobs        blob.Store
	extractor    *extract.Extractor
	analyzer     *ai.Orchestrator
	previewChars int
	log          *slog.Logger
}

func New(st store.Store, ca cache.Cache, blobs blob.Store, ex *extract.Extractor, an *ai.Orchestrator, previewChars int, log *slog.Logger) *Worker {
	if previewChars <= 0 {
		previewChars = 2000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:        st,
		cache:        ca,
		blobs:        blobs,
		extractor:    ex,
		analyzer:     an,
		previewChars: previewChars,
		log:          log,
	}
}

// Process runs the pipeline for jobID in the caller's goroutine, detached
// from any request context. The conditional queued → processing transition
// is the duplicate-dispatch guard: a no-op means another worker owns the
// job and this call exits without side effects. Once processing, every exit
// path lands the job in a terminal state — the deferred recover exists so
// an unexpected panic can never leave a job stuck in processing.
func (w *Worker) Process(jobID uuid.UUID) {
	ctx := context.Background()

	claimed := false
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic while processing job", "job_id", jobID, "panic", r)
			if claimed {
				w.fail(ctx, jobID, fmt.Sprintf("internal error: %v", r))
			}
		}
	}()

	job, err := w.store.GetJobInternal(ctx, jobID)
	if err != nil {
		w.log.Error("load job", "job_id", jobID, "error", err)
		return
	}

	ok, err := w.store.TransitionJob(ctx, jobID, models.JobStatusQueued, models.JobStatusProcessing)
	if err != nil {
		w.log.Error("claim job", "job_id", jobID, "error", err)
		return
	}
	if !ok {
		w.log.Info("job already claimed, skipping", "job_id", jobID, "status", job.Status)
		return
	}
	claimed = true
	w.setStatus(ctx, jobID, models.JobStatusProcessing)

	data, err := w.blobs.Get(ctx, job.BlobKey)
	if err != nil {
		w.log.Error("download blob", "job_id", jobID, "blob_key", job.BlobKey, "error", err)
		w.fail(ctx, jobID, "could not download the uploaded file")
		return
	}

	text, err := w.extractor.Extract(data, job.MediaType, job.FileName)
	if err != nil {
		w.log.Error("extract text", "job_id", jobID, "media_type", job.MediaType, "error", err)
		w.fail(ctx, jobID, "could not extract text from file")
		return
	}

	result := w.analyzer.Analyze(ctx, text)
	result.TextPreview = truncateRunes(text, w.previewChars)

	ok, err = w.store.TransitionJob(ctx, jobID, models.JobStatusProcessing, models.JobStatusCompleted,
		store.WithResult(&result))
	if err != nil {
		w.log.Error("persist result", "job_id", jobID, "error", err)
		w.fail(ctx, jobID, "could not store the analysis result")
		return
	}
	if !ok {
		w.log.Warn("job left processing before completion", "job_id", jobID)
		return
	}
	w.setStatus(ctx, jobID, models.JobStatusCompleted)

	w.log.Info("job completed",
		"job_id", jobID,
		"provider", result.Provider,
		"degraded", result.Degraded,
		"word_count", result.WordCount)
}

// fail is best-effort cleanup: it moves a claimed job to failed with a
// short, non-sensitive reason. Errors here are logged, not propagated —
// there is nobody left to propagate them to.
func (w *Worker) fail(ctx context.Context, jobID uuid.UUID, reason string) {
	ok, err := w.store.TransitionJob(ctx, jobID, models.JobStatusProcessing, models.JobStatusFailed,
		store.WithErrorMessage(reason))
	if err != nil {
		w.log.Error("mark job failed", "job_id", jobID, "error", err)
		return
	}
	if !ok {
		w.log.Warn("job not in processing during failure cleanup", "job_id", jobID)
		return
	}
	w.setStatus(ctx, jobID, models.JobStatusFailed)
}

func (w *Worker) setStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if err := w.cache.SetJobStatus(ctx, jobID, status, statusCacheTTL); err != nil {
		w.log.Warn("cache job status", "job_id", jobID, "error", err)
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
