package vfs

import (
	"errors"
	"fmt"

	"github.com/odvcencio/snapfs/pkg/lock"
	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

var (
	// ErrStaleSnapshot means the branch moved since the snapshot was read.
	// Re-read the branch and recompute; see RetryWrite.
	ErrStaleSnapshot = errors.New("stale snapshot")

	// ErrPermission is returned for writes through a tag-bound or detached
	// snapshot.
	ErrPermission = errors.New("permission denied")

	ErrNotFound       = errors.New("not found")
	ErrIsADirectory   = errors.New("is a directory")
	ErrNotADirectory  = errors.New("not a directory")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidHash    = errors.New("invalid hash")
	ErrInvalidRefName = refs.ErrInvalidName

	// ErrBatchClosed is returned by any call on a batch after Commit.
	ErrBatchClosed = errors.New("batch is closed")

	// ErrKeyExists is returned when creating a tag that already exists.
	ErrKeyExists = errors.New("key exists")

	ErrLockTimeout = lock.ErrTimeout

	ErrAuditAppend = errors.New("ref updated but audit append failed")
)

// AuditError indicates the ref update succeeded, but appending the
// corresponding audit entry failed. The ref keeps its new value.
type AuditError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *AuditError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrAuditAppend,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *AuditError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *AuditError) Is(target error) bool {
	return target == ErrAuditAppend
}

// notFound maps a backend's missing-object error onto ErrNotFound.
func notFound(err error) error {
	if err != nil && errors.Is(err, object.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
