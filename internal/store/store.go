package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/doclens/doclens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob is owner-scoped: it returns ErrNotFound for a foreign owner's
	// job exactly as for a missing one, so existence never leaks across
	// owners.
	GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error)
	// GetJobInternal loads a job without an owner filter. Only the worker,
	// acting as an internal collaborator, may use it.
	GetJobInternal(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// TransitionJob applies a compare-and-swap status update: the row changes
	// only if its current status equals from. It reports whether the
	// transition applied; a false result with a nil error means another
	// actor got there first (or the job does not exist) and the caller must
	// back off without side effects.
	TransitionJob(ctx context.Context, id uuid.UUID, from, to string, opts ...TransitionOption) (bool, error)
	DeleteJob(ctx context.Context, id uuid.UUID, ownerID string) error

	// EnsureQuota lazily creates a zero-usage quota row for the owner.
	// Idempotent: a concurrent duplicate insert is not an error.
	EnsureQuota(ctx context.Context, ownerID string) error
	GetQuota(ctx context.Context, ownerID string) (*models.QuotaRecord, error)
	// IncrementQuotaUsage atomically bumps used_jobs for free-tier owners.
	IncrementQuotaUsage(ctx context.Context, ownerID string) error
}

// TransitionChanges collects the optional column updates carried by a
// status transition.
type TransitionChanges struct {
	Result       *models.DocumentAnalysis
	ErrorMessage *string
}

type TransitionOption func(*TransitionChanges)

// WithResult attaches the analysis payload; used on the transition to completed.
func WithResult(result *models.DocumentAnalysis) TransitionOption {
	return func(p *TransitionChanges) {
		p.Result = result
	}
}

// WithErrorMessage attaches a failure reason; used on the transition to failed.
func WithErrorMessage(msg string) TransitionOption {
	return func(p *TransitionChanges) {
		p.ErrorMessage = &msg
	}
}
