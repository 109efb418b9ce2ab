package vfs

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// Parent returns the snapshot of the parent commit, bound to the same ref,
// or nil at the root commit.
func (f *Fs) Parent() (*Fs, error) {
	if f.info == nil || f.info.Parent == "" {
		return nil, nil
	}
	return f.store.newFs(f.info.Parent, f.ref, f.writable)
}

// Back returns the snapshot n commits before f.
func (f *Fs) Back(n int) (*Fs, error) {
	if n < 0 {
		return nil, fmt.Errorf("back: negative step count %d", n)
	}
	cur := f
	for i := 0; i < n; i++ {
		parent, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("back %d from %s: %w: history has only %d earlier commit(s)", n, displayHash(f.commit), ErrNotFound, i)
		}
		cur = parent
	}
	return cur, nil
}

// Log returns up to limit snapshots starting at f and following parents.
// A limit of zero or less means no limit.
func (f *Fs) Log(limit int) ([]*Fs, error) {
	var out []*Fs
	for cur := f; cur != nil && cur.commit != ""; {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cur)
		parent, err := cur.Parent()
		if err != nil {
			return out, err
		}
		cur = parent
	}
	return out, nil
}

// Reflog returns the audit log of f's ref, newest entry first.
func (f *Fs) Reflog() ([]refs.Entry, error) {
	if f.ref == "" {
		return nil, fmt.Errorf("reflog: %w: detached snapshot has no ref", ErrNotFound)
	}
	return f.store.reflog(f.ref)
}

func (s *Store) reflog(ref string) ([]refs.Entry, error) {
	entries, err := s.backend.ReadAudit(ref)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Undo moves f's branch back n commits and returns the resulting snapshot.
// The branch must still point at f.
func (f *Fs) Undo(n int) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("undo: step count must be at least 1, got %d", n)
	}
	target, err := f.Back(n)
	if err != nil {
		return nil, fmt.Errorf("undo: %w", err)
	}

	s := f.store
	msg := fmt.Sprintf("undo: %d step(s)", n)
	err = s.withWriteLock(func() error {
		if err := s.checkCurrent(f.ref, f.commit); err != nil {
			return err
		}
		return s.updateRef(f.ref, f.commit, target.commit, refs.KindUndo, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("undo %s: %w", f.ref, err)
	}
	s.logger.Debug("undo", "ref", f.ref, "from", f.commit.Short(), "to", target.commit.Short(), "steps", n)
	return target, nil
}

// Redo reverses the most recent n undo operations of f's branch, newest
// first. A single Undo(k) is one operation. Only an unbroken run of undo and
// redo entries at the end of the audit log is considered; any other update
// since the last undo leaves nothing to redo.
func (f *Fs) Redo(n int) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("redo: step count must be at least 1, got %d", n)
	}

	s := f.store
	var target object.Hash
	err := s.withWriteLock(func() error {
		if err := s.checkCurrent(f.ref, f.commit); err != nil {
			return err
		}
		entries, err := s.backend.ReadAudit(f.ref)
		if err != nil {
			return err
		}
		target, err = redoTarget(entries, f.commit, n)
		if err != nil {
			return err
		}
		return s.updateRef(f.ref, f.commit, target, refs.KindRedo, fmt.Sprintf("redo: %d step(s)", n))
	})
	if err != nil {
		return nil, fmt.Errorf("redo %s: %w", f.ref, err)
	}
	s.logger.Debug("redo", "ref", f.ref, "from", f.commit.Short(), "to", target.Short(), "steps", n)
	return s.newFs(target, f.ref, true)
}

// pendingUndos returns the undo entries of the trailing undo/redo run that
// no later redo has reversed, oldest first. entries are oldest first.
func pendingUndos(entries []refs.Entry) []refs.Entry {
	start := len(entries)
	for start > 0 {
		k := entries[start-1].Kind
		if k != refs.KindUndo && k != refs.KindRedo {
			break
		}
		start--
	}
	var stack []refs.Entry
	for _, e := range entries[start:] {
		if e.Kind == refs.KindUndo {
			stack = append(stack, e)
			continue
		}
		// A redo reversed undos back to the one it restored.
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.Old == e.New {
				break
			}
		}
	}
	return stack
}

// redoTarget follows n pending undo entries backwards from current: each
// entry's New must be the current position, and its Old becomes the next.
func redoTarget(entries []refs.Entry, current object.Hash, n int) (object.Hash, error) {
	if len(entries) == 0 || entries[len(entries)-1].New != current {
		return "", fmt.Errorf("%w: no undo to redo", ErrNotFound)
	}
	undos := pendingUndos(entries)
	if len(undos) < n {
		return "", fmt.Errorf("%w: only %d undo(s) to redo", ErrNotFound, len(undos))
	}
	pos := current
	for i := 0; i < n; i++ {
		e := undos[len(undos)-1-i]
		if e.New != pos {
			return "", fmt.Errorf("%w: undo log does not lead back to %s", ErrNotFound, displayHash(pos))
		}
		pos = e.Old
	}
	return pos, nil
}
