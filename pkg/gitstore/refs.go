package gitstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

func (s *Store) readRef(name string) (object.Hash, bool, error) {
	ref, err := s.repo.Storer.Reference(plumbing.ReferenceName(name))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	if ref.Type() != plumbing.HashReference {
		return "", false, fmt.Errorf("read ref %q: symbolic refs are not supported", name)
	}
	return fromGitHash(ref.Hash()), true, nil
}

// ReadRef returns the commit a ref points at; ok is false when it does not
// exist.
func (s *Store) ReadRef(name string) (object.Hash, bool, error) {
	if err := refs.ValidateRef(name); err != nil {
		return "", false, fmt.Errorf("read ref: %w", err)
	}
	return s.readRef(name)
}

// WriteRef moves name from old to newHash. An empty old requires that the
// ref does not exist.
func (s *Store) WriteRef(name string, old, newHash object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	target, err := toGitHash(newHash)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.readRef(name)
	if err != nil {
		return err
	}
	if current != old {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, old, current)
	}

	refName := plumbing.ReferenceName(name)
	var oldRef *plumbing.Reference
	if ok {
		oldRef = plumbing.NewHashReference(refName, plumbing.NewHash(string(current)))
	}
	err = s.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(refName, target), oldRef)
	if errors.Is(err, storage.ErrReferenceHasChanged) {
		return fmt.Errorf("update ref %q: %w", name, refs.ErrCASMismatch)
	}
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return nil
}

// DeleteRef removes name if it still points at old.
func (s *Store) DeleteRef(name string, old object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.readRef(name)
	if err != nil {
		return err
	}
	if !ok || current != old {
		return fmt.Errorf("delete ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, old, current)
	}
	if err := s.repo.Storer.RemoveReference(plumbing.ReferenceName(name)); err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// ListRefs maps full ref names starting with prefix to their commits.
func (s *Store) ListRefs(prefix string) (map[string]object.Hash, error) {
	iter, err := s.repo.Storer.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	out := make(map[string]object.Hash)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if ref.Type() != plumbing.HashReference || !strings.HasPrefix(name, prefix) {
			return nil
		}
		if refs.ValidateRef(name) != nil {
			return nil
		}
		out[name] = fromGitHash(ref.Hash())
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

// Head returns the branch HEAD points at.
func (s *Store) Head() (string, error) {
	ref, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("read HEAD: detached HEAD is not supported")
	}
	return ref.Target().String(), nil
}

// SetHead points HEAD at ref.
func (s *Store) SetHead(ref string) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	if refs.IsTag(ref) {
		return fmt.Errorf("set HEAD: %w: HEAD must name a branch", refs.ErrInvalidName)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.ReferenceName(ref))
	if err := s.repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return nil
}

func (s *Store) auditPath(ref string) string {
	return filepath.Join(s.dir, auditDir, filepath.FromSlash(ref))
}

// AppendAudit appends e to ref's audit log.
func (s *Store) AppendAudit(ref string, e refs.Entry) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return refs.AppendFile(s.auditPath(ref), e)
}

// ReadAudit returns ref's audit log, oldest entry first.
func (s *Store) ReadAudit(ref string) ([]refs.Entry, error) {
	if err := refs.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return refs.ReadFile(s.auditPath(ref))
}
