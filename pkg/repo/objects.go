package repo

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/object"
)

// PutBlob stores file content.
func (r *Repo) PutBlob(data []byte) (object.Hash, error) {
	return r.Store.WriteBlob(data)
}

// ReadBlob reads file content.
func (r *Repo) ReadBlob(h object.Hash) ([]byte, error) {
	return r.Store.ReadBlob(h)
}

// PutTree stores a tree built from entries.
func (r *Repo) PutTree(entries []object.TreeEntry) (object.Hash, error) {
	return r.Store.WriteTree(&object.TreeObj{Entries: entries})
}

// ReadTree returns the name-sorted entries of a tree.
func (r *Repo) ReadTree(h object.Hash) ([]object.TreeEntry, error) {
	tr, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, err
	}
	return tr.Entries, nil
}

// PutCommit stores a commit.
func (r *Repo) PutCommit(c *object.CommitObj) (object.Hash, error) {
	if c == nil {
		return "", fmt.Errorf("put commit: nil commit")
	}
	return r.Store.WriteCommit(c)
}

// ReadCommit reads a commit.
func (r *Repo) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	return r.Store.ReadCommit(h)
}
