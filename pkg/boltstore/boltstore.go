// Package boltstore keeps a whole snapfs store in a single bbolt file.
// Objects use the native hash and serialization; ref compare-and-swap runs
// inside a bbolt update transaction.
package boltstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// DefaultBranch is the branch HEAD names in a fresh store.
const DefaultBranch = "main"

var (
	bucketObjects = []byte("objects")
	bucketRefs    = []byte("refs")
	bucketAudit   = []byte("audit")
	bucketMeta    = []byte("meta")

	keyHead = []byte("HEAD")
)

// OpenTimeout bounds how long Open waits for another process holding the
// database file.
var OpenTimeout = 5 * time.Second

// Store is a bbolt-backed snapfs backend.
type Store struct {
	path string
	db   *bolt.DB
	once sync.Once
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("open: database path is required")
	}
	cleaned, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return nil, fmt.Errorf("open: mkdir: %w", err)
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cleaned, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketObjects, bucketRefs, bucketAudit, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyHead) == nil {
			return meta.Put(keyHead, []byte(refs.Branch(DefaultBranch)))
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", cleaned, err)
	}
	return &Store{path: cleaned, db: db}, nil
}

// Path returns the directory containing the database file.
func (s *Store) Path() string { return filepath.Dir(s.path) }

// File returns the database file path.
func (s *Store) File() string { return s.path }

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

// put stores "type\x00data" under its hash. Existing objects are left alone.
func (s *Store) put(t object.ObjectType, data []byte) (object.Hash, error) {
	h := object.HashObject(t, data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		if b.Get([]byte(h)) != nil {
			return nil
		}
		value := make([]byte, 0, len(t)+1+len(data))
		value = append(value, []byte(t)...)
		value = append(value, 0)
		value = append(value, data...)
		return b.Put([]byte(h), value)
	})
	if err != nil {
		return "", fmt.Errorf("store %s: %w", t, err)
	}
	return h, nil
}

func (s *Store) get(h object.Hash, want object.ObjectType) ([]byte, error) {
	if !object.ValidHash(h) {
		return nil, fmt.Errorf("%w: invalid hash %q", object.ErrNotFound, h)
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketObjects).Get([]byte(h))
		if value == nil {
			return fmt.Errorf("%w: %s", object.ErrNotFound, h)
		}
		t, data, ok := bytes.Cut(value, []byte{0})
		if !ok {
			return fmt.Errorf("object %s: corrupt envelope", h)
		}
		if object.ObjectType(t) != want {
			return fmt.Errorf("%w: %s is a %s, not a %s", object.ErrNotFound, h, t, want)
		}
		out = append([]byte{}, data...)
		return nil
	})
	return out, err
}

func (s *Store) PutBlob(data []byte) (object.Hash, error) {
	return s.put(object.TypeBlob, data)
}

func (s *Store) ReadBlob(h object.Hash) ([]byte, error) {
	return s.get(h, object.TypeBlob)
}

func (s *Store) PutTree(entries []object.TreeEntry) (object.Hash, error) {
	return s.put(object.TypeTree, object.MarshalTree(&object.TreeObj{Entries: entries}))
}

func (s *Store) ReadTree(h object.Hash) ([]object.TreeEntry, error) {
	data, err := s.get(h, object.TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := object.UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", h.Short(), err)
	}
	return tr.Entries, nil
}

func (s *Store) PutCommit(c *object.CommitObj) (object.Hash, error) {
	if c == nil {
		return "", fmt.Errorf("put commit: nil commit")
	}
	return s.put(object.TypeCommit, object.MarshalCommit(c))
}

func (s *Store) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	data, err := s.get(h, object.TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := object.UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", h.Short(), err)
	}
	return c, nil
}

// ReadRef returns the commit a ref points at; ok is false when it does not
// exist.
func (s *Store) ReadRef(name string) (h object.Hash, ok bool, err error) {
	if err := refs.ValidateRef(name); err != nil {
		return "", false, fmt.Errorf("read ref: %w", err)
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRefs).Get([]byte(name)); v != nil {
			h, ok = object.Hash(v), true
		}
		return nil
	})
	return h, ok, err
}

// WriteRef moves name from old to newHash in one transaction. An empty old
// requires that the ref does not exist.
func (s *Store) WriteRef(name string, old, newHash object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if !object.ValidHash(newHash) {
		return fmt.Errorf("update ref %q: invalid hash %q", name, newHash)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		current := object.Hash(b.Get([]byte(name)))
		if current != old {
			return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, old, current)
		}
		return b.Put([]byte(name), []byte(newHash))
	})
}

// DeleteRef removes name if it still points at old.
func (s *Store) DeleteRef(name string, old object.Hash) error {
	if err := refs.ValidateRef(name); err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		current := object.Hash(b.Get([]byte(name)))
		if current == "" || current != old {
			return fmt.Errorf("delete ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, old, current)
		}
		return b.Delete([]byte(name))
	})
}

// ListRefs maps full ref names starting with prefix to their commits.
func (s *Store) ListRefs(prefix string) (map[string]object.Hash, error) {
	out := make(map[string]object.Hash)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRefs).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			out[string(k)] = object.Hash(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

func (s *Store) Head() (string, error) {
	var head string
	err := s.db.View(func(tx *bolt.Tx) error {
		head = string(tx.Bucket(bucketMeta).Get(keyHead))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head == "" {
		return "", fmt.Errorf("read HEAD: not set")
	}
	return head, nil
}

func (s *Store) SetHead(ref string) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyHead, []byte(ref))
	})
}

// AppendAudit appends e to ref's audit log. Entries are keyed by the
// bucket sequence, so iteration order is append order.
func (s *Store) AppendAudit(ref string, e refs.Entry) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketAudit).CreateBucketIfNotExists([]byte(ref))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, []byte(refs.EncodeEntry(e)))
	})
}

// ReadAudit returns ref's audit log, oldest entry first.
func (s *Store) ReadAudit(ref string) ([]refs.Entry, error) {
	if err := refs.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	var entries []refs.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit).Bucket([]byte(ref))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			e, err := refs.DecodeEntry(string(v))
			if err != nil {
				return nil
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}
