package service

import (
	"context"
	"time"
)

// Retriable calls f until it succeeds, returns a non-temporary error, maxTries is reached or ctx is done.
// Before each retry, it waits for wait*(2^try-1) (exponential backoff, starting at 0).
// Returns the last error of f.
func Retriable(ctx context.Context, f func() error, wait time.Duration, maxTries int) error {
	var err error
	if maxTries < 1 {
		maxTries = 1
	}
	for i := 0; i < maxTries; i++ {
		if i > 0 {
			select {
			case <-time.After(((1 << i) - 1) * wait):
			case <-ctx.Done():
				return MergeErrors(true, err, ctx.Err())
			}
		}
		if err = f(); err == nil || !Temporary(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
