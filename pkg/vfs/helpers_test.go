package vfs

import (
	"errors"
	"sync"
	"testing"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
	"github.com/odvcencio/snapfs/pkg/repo"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}
	s := Open(r, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mainBranch(t *testing.T, s *Store) *Fs {
	t.Helper()
	f, err := s.Branch("main")
	if err != nil {
		t.Fatalf("Branch(main): %v", err)
	}
	return f
}

func mustWrite(t *testing.T, f *Fs, path, content string) *Fs {
	t.Helper()
	next, err := f.WriteText(path, content)
	if err != nil {
		t.Fatalf("WriteText(%q): %v", path, err)
	}
	return next
}

func readString(t *testing.T, f *Fs, path string) string {
	t.Helper()
	got, err := f.ReadText(path)
	if err != nil {
		t.Fatalf("ReadText(%q): %v", path, err)
	}
	return got
}

func mustNotExist(t *testing.T, f *Fs, path string) {
	t.Helper()
	ok, err := f.Exists(path)
	if err != nil {
		t.Fatalf("Exists(%q): %v", path, err)
	}
	if ok {
		t.Fatalf("%q exists, want missing", path)
	}
}

// countingBackend counts object writes so tests can assert that a failed
// operation wrote nothing.
type countingBackend struct {
	Backend

	mu        sync.Mutex
	puts      int
	failAudit bool
}

func (c *countingBackend) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

func (c *countingBackend) inc() {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
}

func (c *countingBackend) PutBlob(data []byte) (object.Hash, error) {
	c.inc()
	return c.Backend.PutBlob(data)
}

func (c *countingBackend) PutTree(entries []object.TreeEntry) (object.Hash, error) {
	c.inc()
	return c.Backend.PutTree(entries)
}

func (c *countingBackend) PutCommit(commit *object.CommitObj) (object.Hash, error) {
	c.inc()
	return c.Backend.PutCommit(commit)
}

func (c *countingBackend) AppendAudit(ref string, e refs.Entry) error {
	if c.failAudit {
		return errors.New("disk full")
	}
	return c.Backend.AppendAudit(ref, e)
}

func newCountingStore(t *testing.T) (*Store, *countingBackend) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}
	cb := &countingBackend{Backend: r}
	s := Open(cb)
	t.Cleanup(func() { _ = s.Close() })
	return s, cb
}
