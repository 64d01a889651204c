package domain

import (
	"context"
	"time"
)

// JobUpdate carries a partial-field update for a job row. Nil fields are
// left untouched by the store.
type JobUpdate struct {
	Status       *JobStatus
	CurrentStep  *string
	Progress     *int
	Result       *GenerationResult
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// JobStore is the durable source of truth for job state. Get applies
// expiry: a job past its ExpiresAt is reported as ErrNotFound even when the
// underlying row still exists. Per-row operations are atomic; no multi-row
// transactions are required.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	Update(ctx context.Context, jobID string, upd JobUpdate) error
}

// PlatformCredentials is the opaque token material supplied per publish
// call. Refresh-on-expiry is the token provider's concern, not ours.
type PlatformCredentials struct {
	AccessToken string
	AccountID   string
}

// TokenProvider resolves publish credentials for an owner/platform pair.
// Implemented by the external OAuth integration layer.
type TokenProvider interface {
	Credentials(ctx context.Context, ownerID, platform string) (*PlatformCredentials, error)
	Connected(ctx context.Context, ownerID string) (map[string]bool, error)
}
