// Package repo is the native on-disk object store: loose zstd-compressed
// objects, one file per ref, and a typed audit log per ref.
//
// Layout of a store directory:
//
//	HEAD                 "ref: refs/heads/main"
//	config.toml
//	objects/ab/cdef...
//	refs/heads/<name>
//	refs/tags/<name>
//	logs/refs/heads/<name>
package repo

import (
	"github.com/odvcencio/snapfs/pkg/object"
)

// Repo represents an opened store directory.
type Repo struct {
	Dir   string        // store root
	Store *object.Store // content-addressed object store
}

// Path returns the store root. Writers scope their cross-process lock to it.
func (r *Repo) Path() string { return r.Dir }

// Close releases the object store's codecs.
func (r *Repo) Close() error {
	return r.Store.Close()
}
