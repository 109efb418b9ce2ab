package vfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// RefDict maps the names under one ref namespace (branches or tags) to
// snapshots. Updates are compare-and-swap under the store's write lock and
// are recorded in each ref's audit log.
type RefDict struct {
	store  *Store
	prefix string
}

func (d *RefDict) isTags() bool { return d.prefix == refs.TagsPrefix }

func (d *RefDict) ref(name string) (string, error) {
	if err := refs.ValidateName(name); err != nil {
		return "", err
	}
	return d.prefix + name, nil
}

// Get returns the snapshot a name points at.
func (d *RefDict) Get(name string) (*Fs, error) {
	ref, err := d.ref(name)
	if err != nil {
		return nil, err
	}
	h, ok, err := d.store.backend.ReadRef(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return d.store.newFs(h, ref, !d.isTags())
}

func (d *RefDict) Has(name string) (bool, error) {
	ref, err := d.ref(name)
	if err != nil {
		return false, err
	}
	_, ok, err := d.store.backend.ReadRef(ref)
	return ok, err
}

// Set points name at snap's commit. Tags may only be created, never moved.
func (d *RefDict) Set(name string, snap *Fs) error {
	ref, err := d.ref(name)
	if err != nil {
		return err
	}
	if snap == nil || snap.commit == "" {
		return fmt.Errorf("set %s: %w: snapshot has no commit", ref, ErrNotFound)
	}
	if snap.store != d.store {
		return fmt.Errorf("set %s: snapshot belongs to a different store", ref)
	}
	target := snap.commit

	s := d.store
	err = s.withWriteLock(func() error {
		current, ok, err := s.backend.ReadRef(ref)
		if err != nil {
			return err
		}
		if ok && d.isTags() {
			return fmt.Errorf("%w: tag %s", ErrKeyExists, name)
		}
		if ok && current == target {
			return nil
		}
		kind := refs.KindSet
		msg := fmt.Sprintf("set: %s", target.Short())
		if !ok {
			kind = refs.KindCreate
			msg = fmt.Sprintf("create: %s", target.Short())
		}
		return s.updateRef(ref, current, target, kind, msg)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	s.logger.Debug("ref set", "ref", ref, "commit", target.Short())
	return nil
}

// Delete removes name. The current branch cannot be deleted.
func (d *RefDict) Delete(name string) error {
	ref, err := d.ref(name)
	if err != nil {
		return err
	}
	s := d.store
	err = s.withWriteLock(func() error {
		if !d.isTags() {
			head, err := s.backend.Head()
			if err != nil {
				return err
			}
			if head == ref {
				return fmt.Errorf("%w: branch is current", ErrPermission)
			}
		}
		current, ok, err := s.backend.ReadRef(ref)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return s.deleteRef(ref, current, "delete")
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	s.logger.Debug("ref deleted", "ref", ref)
	return nil
}

// List returns every name with the commit it points at.
func (d *RefDict) List() (map[string]object.Hash, error) {
	all, err := d.store.backend.ListRefs(d.prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]object.Hash, len(all))
	for ref, h := range all {
		out[strings.TrimPrefix(ref, d.prefix)] = h
	}
	return out, nil
}

// Names returns the sorted names in the namespace.
func (d *RefDict) Names() ([]string, error) {
	all, err := d.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Reflog returns the audit log of name, newest entry first.
func (d *RefDict) Reflog(name string) ([]refs.Entry, error) {
	ref, err := d.ref(name)
	if err != nil {
		return nil, err
	}
	return d.store.reflog(ref)
}

// Current returns the name of the current branch.
func (d *RefDict) Current() (string, error) {
	if d.isTags() {
		return "", fmt.Errorf("%w: tags have no current entry", ErrPermission)
	}
	head, err := d.store.backend.Head()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(head, refs.HeadsPrefix), nil
}

// SetCurrent makes name the current branch. The branch need not exist yet.
func (d *RefDict) SetCurrent(name string) error {
	if d.isTags() {
		return fmt.Errorf("%w: tags have no current entry", ErrPermission)
	}
	ref, err := d.ref(name)
	if err != nil {
		return err
	}
	s := d.store
	return s.withWriteLock(func() error {
		return s.backend.SetHead(ref)
	})
}
