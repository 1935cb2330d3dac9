package llm

import (
	"context"
	"time"
)

// Retry runs fn, retrying on error with a fixed 1-second backoff.
// maxAttempts <= 0 means retry until ctx is cancelled — spec.md §5's
// crawler retry shape ("infinite retry with 1s sleep by default, or
// capped retries when try_num>0"), reused verbatim here because §5's
// "Cancellation & timeouts" section applies to every outbound call, not
// only the crawler (SPEC_FULL.md §7).
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
