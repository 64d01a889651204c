package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobStorePG implements domain.JobStore on PostgreSQL.
type JobStorePG struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a new job store backed by PostgreSQL.
func NewJobStore(pool *pgxpool.Pool) *JobStorePG {
	return &JobStorePG{pool: pool}
}

// Create inserts a new job row.
func (r *JobStorePG) Create(ctx context.Context, job *domain.Job) error {
	configJSON, err := json.Marshal(job.InputConfig)
	if err != nil {
		return fmt.Errorf("marshal input config: %w", err)
	}
	imagesJSON, err := json.Marshal(job.ImageRefs)
	if err != nil {
		return fmt.Errorf("marshal image refs: %w", err)
	}
	query := `
INSERT INTO jobs (id, owner_id, status, current_step, progress, input_config, images, error_message, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Status,
		job.CurrentStep,
		job.Progress,
		configJSON,
		imagesJSON,
		job.ErrorMessage,
		job.CreatedAt,
		job.ExpiresAt,
	)
	return err
}

// Get fetches a job by id. Rows past their expiry are reported as
// domain.ErrNotFound without being deleted.
func (r *JobStorePG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, owner_id, status, current_step, progress, input_config, images, result, error_message, created_at, started_at, completed_at, expires_at
FROM jobs
WHERE id = $1 AND expires_at > NOW();
`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// Update applies a partial-field update to a single job row. Nil fields in
// upd keep their stored values.
func (r *JobStorePG) Update(ctx context.Context, jobID string, upd domain.JobUpdate) error {
	var resultJSON []byte
	if upd.Result != nil {
		b, err := json.Marshal(upd.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = b
	}
	query := `
UPDATE jobs
SET status        = COALESCE($2, status),
    current_step  = COALESCE($3, current_step),
    progress      = COALESCE($4, progress),
    result        = COALESCE($5, result),
    error_message = COALESCE($6, error_message),
    started_at    = COALESCE($7, started_at),
    completed_at  = COALESCE($8, completed_at)
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query,
		jobID,
		upd.Status,
		upd.CurrentStep,
		upd.Progress,
		nullableBytes(resultJSON),
		upd.ErrorMessage,
		upd.StartedAt,
		upd.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Claim atomically marks the oldest pending, unexpired job as processing and
// returns it. Returns domain.ErrNotFound when no job is available.
func (r *JobStorePG) Claim(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'processing'
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending' AND expires_at > NOW()
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, owner_id, status, current_step, progress, input_config, images, result, error_message, created_at, started_at, completed_at, expires_at;
`
	return r.scanJob(r.pool.QueryRow(ctx, query))
}

// DeleteExpired removes rows past their expiry for storage reclamation. The
// service never calls this on the request path; expiry is enforced in Get.
func (r *JobStorePG) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE expires_at <= NOW();`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *JobStorePG) scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job        domain.Job
		configJSON []byte
		imagesJSON []byte
		resultJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&job.CurrentStep,
		&job.Progress,
		&configJSON,
		&imagesJSON,
		&resultJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(configJSON, &job.InputConfig); err != nil {
		return nil, fmt.Errorf("unmarshal input config: %w", err)
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &job.ImageRefs); err != nil {
			return nil, fmt.Errorf("unmarshal image refs: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		var result domain.GenerationResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
