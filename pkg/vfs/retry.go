package vfs

import (
	"errors"
	"math/rand/v2"
	"time"
)

// DefaultMaxAttempts is the number of attempts RetryWrite makes by default.
const DefaultMaxAttempts = 10

// RetryOption configures RetryWrite.
type RetryOption func(*retryOptions)

type retryOptions struct {
	maxAttempts int
	backoff     time.Duration
}

// WithMaxAttempts bounds the number of attempts, including the first.
func WithMaxAttempts(n int) RetryOption {
	return func(o *retryOptions) { o.maxAttempts = n }
}

// WithBackoff sleeps between attempts, starting at base and doubling, with
// up to 50% random jitter. Without it attempts are retried immediately.
func WithBackoff(base time.Duration) RetryOption {
	return func(o *retryOptions) { o.backoff = base }
}

// RetryWrite resolves branch, calls fn with the snapshot and returns its
// result. When fn fails with ErrStaleSnapshot the branch is re-resolved and
// fn runs again, up to the attempt limit. Any other error is returned
// immediately.
//
// fn must derive everything it writes from the snapshot it is given.
func RetryWrite(s *Store, branch string, fn func(*Fs) (*Fs, error), opts ...RetryOption) (*Fs, error) {
	o := retryOptions{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	var lastErr error
	backoff := o.backoff
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if attempt > 0 && backoff > 0 {
			time.Sleep(backoff + rand.N(backoff/2+1))
			backoff *= 2
		}

		snap, err := s.Branch(branch)
		if err != nil {
			return nil, err
		}
		next, err := fn(snap)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrStaleSnapshot) {
			return nil, err
		}
		s.logger.Debug("retrying stale write", "branch", branch, "attempt", attempt+1)
		lastErr = err
	}
	return nil, lastErr
}
