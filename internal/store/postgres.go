package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doclens/doclens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, owner_id, blob_key, file_name, file_size, media_type, status,
	result, error_message, created_at, updated_at, processed_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, blob_key, file_name, file_size, media_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.OwnerID, job.BlobKey, job.FileName, job.FileSize, job.MediaType,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanJob(row)
}

func (s *PostgresStore) GetJobInternal(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// TransitionJob is the single concurrency-control primitive for job state:
// one atomic UPDATE guarded by the expected current status. Two workers
// racing the same job see exactly one applied transition.
func (s *PostgresStore) TransitionJob(ctx context.Context, id uuid.UUID, from, to string, opts ...TransitionOption) (bool, error) {
	params := &TransitionChanges{}
	for _, opt := range opts {
		opt(params)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $3, updated_at = $4`
	args := []any{id, from, to, now}
	argIdx := 5

	switch to {
	case models.JobStatusCompleted:
		// result set below; a completed job carries no error
		query += fmt.Sprintf(", error_message = NULL, processed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	case models.JobStatusFailed:
		query += fmt.Sprintf(", result = NULL, processed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	case models.JobStatusQueued:
		// the retry edge clears all traces of the previous run
		query += ", result = NULL, error_message = NULL, processed_at = NULL"
	}

	if params.Result != nil {
		payload, err := json.Marshal(params.Result)
		if err != nil {
			return false, fmt.Errorf("marshal job result: %w", err)
		}
		query += fmt.Sprintf(", result = $%d", argIdx)
		args = append(args, payload)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += " WHERE id = $1 AND status = $2"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition job %s -> %s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var result []byte
	err := row.Scan(&j.ID, &j.OwnerID, &j.BlobKey, &j.FileName, &j.FileSize, &j.MediaType,
		&j.Status, &result, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if len(result) > 0 {
		var analysis models.DocumentAnalysis
		if err := json.Unmarshal(result, &analysis); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		j.Result = &analysis
	}
	return &j, nil
}

// --- Quotas ---

func (s *PostgresStore) EnsureQuota(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quotas (owner_id, used_jobs, plan_tier, subscription_active, created_at, updated_at)
		 VALUES ($1, 0, $2, FALSE, NOW(), NOW())
		 ON CONFLICT (owner_id) DO NOTHING`, ownerID, models.PlanFree)
	if err != nil {
		return fmt.Errorf("ensure quota: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuota(ctx context.Context, ownerID string) (*models.QuotaRecord, error) {
	var q models.QuotaRecord
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, used_jobs, plan_tier, subscription_active, created_at, updated_at
		 FROM quotas WHERE owner_id = $1`, ownerID,
	).Scan(&q.OwnerID, &q.UsedJobs, &q.PlanTier, &q.SubscriptionActive, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return &q, nil
}

// IncrementQuotaUsage bumps used_jobs in a single statement so that
// concurrent uploads from the same owner never lose an increment. The
// plan_tier guard keeps paid-tier usage untracked.
func (s *PostgresStore) IncrementQuotaUsage(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE quotas SET used_jobs = used_jobs + 1, updated_at = NOW()
		 WHERE owner_id = $1 AND plan_tier = $2`, ownerID, models.PlanFree)
	if err != nil {
		return fmt.Errorf("increment quota usage: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
