package vfs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/odvcencio/snapfs/pkg/lock"
	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// LockFile is the name of the cross-process lock file inside a store
// directory.
const LockFile = "snapfs.lock"

// Store is a handle to a versioned filesystem. It is safe for concurrent
// use by multiple goroutines; cooperating processes are serialized by an
// advisory file lock in the backend's directory.
type Store struct {
	backend Backend

	// mu is always acquired after the file lock, never before.
	mu       sync.Mutex
	lockPath string
	lockOpts lock.Options

	author string
	signer CommitSigner
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithAuthor sets the author recorded on new commits.
func WithAuthor(author string) Option {
	return func(s *Store) { s.author = author }
}

// WithSigner signs every new commit.
func WithSigner(signer CommitSigner) Option {
	return func(s *Store) { s.signer = signer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLockOptions overrides the file lock timeout and poll interval.
func WithLockOptions(opts lock.Options) Option {
	return func(s *Store) { s.lockOpts = opts }
}

// WithClock replaces time.Now for commit and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open wraps a backend. The Store takes ownership of it; Close closes it.
func Open(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		lockPath: filepath.Join(backend.Path(), LockFile),
		author:   "snapfs <snapfs@localhost>",
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying object store.
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error { return s.backend.Close() }

// withWriteLock runs fn holding the file lock and then the store mutex.
// Calls must not nest.
func (s *Store) withWriteLock(fn func() error) error {
	return lock.With(s.lockPath, s.lockOpts, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	})
}

// Branch returns a writable snapshot of the named branch. A branch that does
// not exist yet yields an empty snapshot; the first write creates it.
func (s *Store) Branch(name string) (*Fs, error) {
	if err := refs.ValidateName(name); err != nil {
		return nil, err
	}
	return s.resolveRef(refs.Branch(name), true)
}

// Tag returns a read-only snapshot of the named tag.
func (s *Store) Tag(name string) (*Fs, error) {
	if err := refs.ValidateName(name); err != nil {
		return nil, err
	}
	ref := refs.Tag(name)
	h, ok, err := s.backend.ReadRef(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", name, ErrNotFound)
	}
	return s.newFs(h, ref, false)
}

// Head returns the snapshot of the current branch.
func (s *Store) Head() (*Fs, error) {
	ref, err := s.backend.Head()
	if err != nil {
		return nil, err
	}
	return s.resolveRef(ref, true)
}

// At returns a detached, read-only snapshot of a commit.
func (s *Store) At(h object.Hash) (*Fs, error) {
	if !object.ValidHash(h) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, h)
	}
	return s.newFs(h, "", false)
}

// Branches is the mapping of branch names to snapshots.
func (s *Store) Branches() *RefDict {
	return &RefDict{store: s, prefix: refs.HeadsPrefix}
}

// Tags is the mapping of tag names to snapshots. Tags are write-once.
func (s *Store) Tags() *RefDict {
	return &RefDict{store: s, prefix: refs.TagsPrefix}
}

// ReadObject returns the content of a blob by hash.
func (s *Store) ReadObject(h object.Hash) ([]byte, error) {
	if !object.ValidHash(h) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, h)
	}
	data, err := s.backend.ReadBlob(h)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func (s *Store) resolveRef(ref string, writable bool) (*Fs, error) {
	h, ok, err := s.backend.ReadRef(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Fs{store: s, ref: ref, writable: writable}, nil
	}
	return s.newFs(h, ref, writable)
}

func (s *Store) newFs(h object.Hash, ref string, writable bool) (*Fs, error) {
	c, err := s.backend.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", h.Short(), notFound(err))
	}
	return &Fs{
		store:    s,
		commit:   h,
		tree:     c.TreeHash,
		ref:      ref,
		writable: writable,
		info:     c,
	}, nil
}
