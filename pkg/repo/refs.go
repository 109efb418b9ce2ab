package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(name))
}

// ReadRef returns the commit a ref points at. ok is false when the ref does
// not exist.
func (r *Repo) ReadRef(name string) (h object.Hash, ok bool, err error) {
	if err := refs.ValidateRef(name); err != nil {
		return "", false, fmt.Errorf("read ref: %w", err)
	}
	h, err = readRefHash(r.refPath(name))
	if err != nil {
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	return h, h != "", nil
}

// WriteRef atomically moves name from old to new using lockfile + rename.
// An empty old means the ref must not exist yet. A mismatch returns an error
// wrapping refs.ErrCASMismatch and leaves the ref untouched.
func (r *Repo) WriteRef(name string, old, newHash object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if newHash == "" {
		return fmt.Errorf("update ref %q: new hash is required", name)
	}
	return r.withRefLock(name, old, func(lockFile *os.File, lockPath, refPath string) (bool, error) {
		if _, err := lockFile.WriteString(string(newHash) + "\n"); err != nil {
			return false, fmt.Errorf("write: %w", err)
		}
		if err := lockFile.Sync(); err != nil {
			return false, fmt.Errorf("sync: %w", err)
		}
		if err := lockFile.Close(); err != nil {
			return false, fmt.Errorf("close: %w", err)
		}
		if err := os.Rename(lockPath, refPath); err != nil {
			return false, fmt.Errorf("rename: %w", err)
		}
		return true, nil
	})
}

// DeleteRef removes name if it still points at old.
func (r *Repo) DeleteRef(name string, old object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}
	if old == "" {
		return fmt.Errorf("delete ref %q: %w (ref does not exist)", name, refs.ErrCASMismatch)
	}
	return r.withRefLock(name, old, func(_ *os.File, _, refPath string) (bool, error) {
		if err := os.Remove(refPath); err != nil {
			return false, fmt.Errorf("remove: %w", err)
		}
		return false, nil
	})
}

// withRefLock holds <ref>.lock, verifies the ref still equals wantOld and
// runs fn. The lock file is removed on every path unless fn reports that it
// renamed the lock file into place.
func (r *Repo) withRefLock(name string, wantOld object.Hash, fn func(lockFile *os.File, lockPath, refPath string) (bool, error)) error {
	refPath := r.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		_ = lockFile.Close()
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if oldHash != wantOld {
		return fmt.Errorf(
			"update ref %q: %w (expected %q, found %q)",
			name,
			refs.ErrCASMismatch,
			wantOld,
			oldHash,
		)
	}
	renamed, err := fn(lockFile, lockPath, refPath)
	if renamed {
		cleanupLock = false
	}
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return nil
}

// ListRefs lists refs whose full name starts with prefix
// (e.g. "refs/heads/"). Keys are full ref names.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.Dir, "refs")
	out := make(map[string]object.Hash)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		if h != "" {
			out[name] = h
		}
		return nil
	})
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
