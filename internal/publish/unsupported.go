package publish

import (
	"context"
	"fmt"
)

// Unsupported is a placeholder adapter for platforms the service does not
// publish to yet. It keeps the contract polymorphic so callers need no
// special casing; the outcome points users at the manual export path.
type Unsupported struct {
	platform string
}

// NewUnsupported builds a placeholder adapter for the named platform.
func NewUnsupported(platform string) *Unsupported {
	return &Unsupported{platform: platform}
}

// Platform returns the platform identifier.
func (a *Unsupported) Platform() string { return a.platform }

// Publish deterministically reports the platform as unsupported without any
// network call.
func (a *Unsupported) Publish(_ context.Context, _ Request) (*Outcome, error) {
	return nil, fmt.Errorf("%s: %w", a.platform, ErrNotSupported)
}

var _ Adapter = (*Unsupported)(nil)
