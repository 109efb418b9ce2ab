package vfs

import (
	"errors"
	"fmt"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// publish applies cs on top of base and moves base's ref to the resulting
// commit. The ref must still point at base.commit; otherwise nothing is
// written and ErrStaleSnapshot is returned.
func (s *Store) publish(base *Fs, cs *changeSet, message string) (*Fs, error) {
	if err := base.checkWritable(); err != nil {
		return nil, err
	}

	var next *Fs
	err := s.withWriteLock(func() error {
		if err := s.checkCurrent(base.ref, base.commit); err != nil {
			return err
		}

		tree, err := rebuildTree(s.backend, base.tree, cs)
		if err != nil {
			return err
		}
		commitHash, c, err := s.writeCommit(tree, base.commit, message)
		if err != nil {
			return err
		}
		if err := s.updateRef(base.ref, base.commit, commitHash, refs.KindWrite, message); err != nil {
			return err
		}
		next = &Fs{
			store:    s,
			commit:   commitHash,
			tree:     tree,
			ref:      base.ref,
			writable: true,
			info:     c,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", base.ref, err)
	}
	s.logger.Debug("published", "ref", base.ref, "commit", next.commit.Short(), "parent", base.commit.Short())
	return next, nil
}

// checkCurrent fails with ErrStaleSnapshot unless ref points at want. An
// empty want means the ref must not exist. Callers hold the write lock.
func (s *Store) checkCurrent(ref string, want object.Hash) error {
	current, _, err := s.backend.ReadRef(ref)
	if err != nil {
		return err
	}
	if current != want {
		s.logger.Debug("stale snapshot", "ref", ref, "have", want.Short(), "current", current.Short())
		return fmt.Errorf("%w: %s is at %s, snapshot is at %s", ErrStaleSnapshot, ref, displayHash(current), displayHash(want))
	}
	return nil
}

// updateRef performs the compare-and-swap and appends the audit entry.
// Callers hold the write lock.
func (s *Store) updateRef(ref string, old, newHash object.Hash, kind refs.Kind, message string) error {
	if err := s.backend.WriteRef(ref, old, newHash); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return fmt.Errorf("%w: %v", ErrStaleSnapshot, err)
		}
		return err
	}
	return s.audit(ref, refs.Entry{Old: old, New: newHash, Kind: kind, Message: message})
}

// deleteRef removes ref if it still points at old. Callers hold the write
// lock.
func (s *Store) deleteRef(ref string, old object.Hash, message string) error {
	if err := s.backend.DeleteRef(ref, old); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return fmt.Errorf("%w: %v", ErrStaleSnapshot, err)
		}
		return err
	}
	return s.audit(ref, refs.Entry{Old: old, Kind: refs.KindDelete, Message: message})
}

func (s *Store) audit(ref string, e refs.Entry) error {
	e.Timestamp = s.now().Unix()
	if err := s.backend.AppendAudit(ref, e); err != nil {
		return &AuditError{Ref: ref, OldHash: e.Old, NewHash: e.New, Err: err}
	}
	return nil
}

func displayHash(h object.Hash) string {
	if h == "" {
		return "(none)"
	}
	return h.Short()
}
