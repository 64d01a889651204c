package publish

import (
	"context"
	"time"
)

// pollUntil invokes check at a fixed interval until it reports done or
// fails, or until maxAttempts checks have run, in which case ErrPollTimeout
// is returned. All platform poll loops share this helper so the attempt
// ceiling and the timeout error stay uniform.
func pollUntil(ctx context.Context, interval time.Duration, maxAttempts int, check func(ctx context.Context) (bool, error)) error {
	if maxAttempts <= 0 {
		return ErrPollTimeout
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrPollTimeout
}
