// Package vfs is a versioned virtual filesystem over a content-addressed
// object store. Every mutation produces a new immutable snapshot (an *Fs)
// and publishes it to a branch with a compare-and-swap, so concurrent
// writers never lose each other's work: one wins, the others get
// ErrStaleSnapshot and retry from a fresh snapshot.
package vfs

import (
	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// Backend is the object-store capability a Store is built on. Objects are
// immutable and content-addressed; refs are the only mutable state and are
// changed exclusively through WriteRef/DeleteRef compare-and-swap.
//
// Implementations: repo.Repo (native directory), gitstore.Store (git
// repository via go-git) and boltstore.Store (single bbolt file).
type Backend interface {
	// Path is the directory the store's cross-process lock is scoped to.
	Path() string

	PutBlob(data []byte) (object.Hash, error)
	ReadBlob(h object.Hash) ([]byte, error)
	PutTree(entries []object.TreeEntry) (object.Hash, error)
	ReadTree(h object.Hash) ([]object.TreeEntry, error)
	PutCommit(c *object.CommitObj) (object.Hash, error)
	ReadCommit(h object.Hash) (*object.CommitObj, error)

	// ReadRef reports ok=false for a missing ref.
	ReadRef(name string) (h object.Hash, ok bool, err error)
	// WriteRef sets name to newHash only if it currently holds old; an
	// empty old means the ref must not exist. Mismatches wrap
	// refs.ErrCASMismatch.
	WriteRef(name string, old, newHash object.Hash) error
	DeleteRef(name string, old object.Hash) error
	// ListRefs maps full ref names starting with prefix to their targets.
	ListRefs(prefix string) (map[string]object.Hash, error)

	Head() (string, error)
	SetHead(ref string) error

	AppendAudit(ref string, e refs.Entry) error
	// ReadAudit returns the ref's audit log, oldest entry first.
	ReadAudit(ref string) ([]refs.Entry, error)

	Close() error
}
