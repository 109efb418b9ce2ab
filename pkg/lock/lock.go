// Package lock provides the cross-process advisory lock that serializes
// writers of one store. The lock is cooperative: processes that do not take
// it are not excluded.
package lock

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// ErrTimeout is returned when the lock could not be acquired before the
// deadline.
var ErrTimeout = errors.New("lock acquisition timed out")

// Options bounds acquisition. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Lock is a held lock. Release is idempotent.
type Lock struct {
	path    string
	release func() error
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	fn := l.release
	l.release = nil
	return fn()
}

// Acquire takes the exclusive lock at path, polling every PollInterval
// until Timeout elapses.
func Acquire(path string, opts Options) (*Lock, error) {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)
	for {
		release, busy, err := tryLock(path)
		if err != nil {
			return nil, fmt.Errorf("lock %q: %w", path, err)
		}
		if !busy {
			return &Lock{path: path, release: release}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q: %w after %s", path, ErrTimeout, opts.Timeout)
		}
		time.Sleep(opts.PollInterval)
	}
}

// With runs fn while holding the lock at path. The lock is released on
// every exit path, including a panic in fn, which is re-raised afterwards.
func With(path string, opts Options, fn func() error) (err error) {
	l, err := Acquire(path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := l.Release(); relErr != nil && err == nil {
			err = fmt.Errorf("lock %q: release: %w", path, relErr)
		}
	}()
	return fn()
}
