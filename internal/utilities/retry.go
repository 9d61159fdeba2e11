package utilities

import (
	"context"
	"time"
)

// RetryWithBackoff retries fn until it succeeds, maxRetry attempts are
// exhausted or ctx is done. The backoff doubles each time, up to maxBackoff.
// The last error is returned.
func RetryWithBackoff(ctx context.Context, fn func() error, maxRetry int, startBackoff, maxBackoff time.Duration) error {
	if maxRetry <= 0 {
		return nil
	}
	backoff := startBackoff
	var err error
	for attempt := 0; attempt < maxRetry; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxRetry-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return err
}
