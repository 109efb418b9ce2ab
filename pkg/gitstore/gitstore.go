// Package gitstore stores a snapfs filesystem in a git repository using
// go-git. Blobs, trees and commits are ordinary SHA-1 git objects, so
// branches can be inspected with stock git tools. Audit logs are kept
// beside the repository in <gitdir>/audit/.
package gitstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// DefaultBranch is the branch HEAD names in a fresh repository.
const DefaultBranch = "main"

const auditDir = "audit"

// Store is a git repository used as a snapfs backend.
type Store struct {
	dir  string
	repo *gogit.Repository

	// mu makes the read-compare-write of ref updates atomic within the
	// process; go-git cannot create a ref only if it is absent.
	mu sync.Mutex
}

// Init creates a bare repository at path with HEAD on DefaultBranch.
func Init(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir: %w", err)
	}
	repo, err := gogit.PlainInit(abs, true)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	s := &Store{dir: abs, repo: repo}
	if err := s.SetHead(refs.Branch(DefaultBranch)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return s, nil
}

// Open opens an existing repository. path may be a bare repository or a
// working tree containing .git.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	repo, err := gogit.PlainOpen(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	dir := abs
	if info, err := os.Stat(filepath.Join(abs, ".git")); err == nil && info.IsDir() {
		dir = filepath.Join(abs, ".git")
	}
	return &Store{dir: dir, repo: repo}, nil
}

// Path returns the git directory.
func (s *Store) Path() string { return s.dir }

func (s *Store) Close() error {
	if c, ok := s.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func toGitHash(h object.Hash) (plumbing.Hash, error) {
	if len(h) != 40 || !object.ValidHash(h) {
		return plumbing.ZeroHash, fmt.Errorf("%w: invalid git hash %q", object.ErrNotFound, h)
	}
	return plumbing.NewHash(string(h)), nil
}

func fromGitHash(h plumbing.Hash) object.Hash {
	return object.Hash(h.String())
}

func mapErr(err error, h object.Hash) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", object.ErrNotFound, h)
	}
	return err
}

func (s *Store) put(t plumbing.ObjectType, data []byte) (object.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(t)
	w, err := obj.Writer()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", t, err)
	}
	return fromGitHash(h), nil
}

// PutBlob stores file content as a git blob.
func (s *Store) PutBlob(data []byte) (object.Hash, error) {
	return s.put(plumbing.BlobObject, data)
}

// ReadBlob reads a git blob.
func (s *Store) ReadBlob(h object.Hash) ([]byte, error) {
	gh, err := toGitHash(h)
	if err != nil {
		return nil, err
	}
	obj, err := s.repo.Storer.EncodedObject(plumbing.BlobObject, gh)
	if err != nil {
		return nil, mapErr(err, h)
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// PutTree stores entries as a git tree in git's canonical order.
func (s *Store) PutTree(entries []object.TreeEntry) (object.Hash, error) {
	tree := &gitobject.Tree{Entries: make([]gitobject.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		gh, err := toGitHash(e.Hash)
		if err != nil {
			return "", fmt.Errorf("tree entry %q: %w", e.Name, err)
		}
		tree.Entries = append(tree.Entries, gitobject.TreeEntry{
			Name: e.Name,
			Mode: toFileMode(e.Kind),
			Hash: gh,
		})
	}
	sort.Slice(tree.Entries, func(i, j int) bool {
		return gitSortKey(tree.Entries[i]) < gitSortKey(tree.Entries[j])
	})

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return "", fmt.Errorf("encode tree: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("store tree: %w", err)
	}
	return fromGitHash(h), nil
}

// gitSortKey orders directories as if their names ended in "/".
func gitSortKey(e gitobject.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// ReadTree returns the entries of a git tree. Submodules are not supported.
func (s *Store) ReadTree(h object.Hash) ([]object.TreeEntry, error) {
	gh, err := toGitHash(h)
	if err != nil {
		return nil, err
	}
	tree, err := gitobject.GetTree(s.repo.Storer, gh)
	if err != nil {
		return nil, mapErr(err, h)
	}
	out := make([]object.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		kind, err := fromFileMode(e.Mode)
		if err != nil {
			return nil, fmt.Errorf("tree %s entry %q: %w", h.Short(), e.Name, err)
		}
		out = append(out, object.TreeEntry{Name: e.Name, Kind: kind, Hash: fromGitHash(e.Hash)})
	}
	return object.SortedEntries(out), nil
}

func toFileMode(k object.EntryKind) filemode.FileMode {
	switch k {
	case object.KindTree:
		return filemode.Dir
	case object.KindExecutable:
		return filemode.Executable
	case object.KindSymlink:
		return filemode.Symlink
	default:
		return filemode.Regular
	}
}

func fromFileMode(m filemode.FileMode) (object.EntryKind, error) {
	switch m {
	case filemode.Dir:
		return object.KindTree, nil
	case filemode.Regular, filemode.Deprecated:
		return object.KindBlob, nil
	case filemode.Executable:
		return object.KindExecutable, nil
	case filemode.Symlink:
		return object.KindSymlink, nil
	default:
		return 0, fmt.Errorf("unsupported mode %s", m)
	}
}

// PutCommit stores a git commit. The author string "Name <email>" is used
// for both author and committer; the signature goes in the gpgsig header.
func (s *Store) PutCommit(c *object.CommitObj) (object.Hash, error) {
	if c == nil {
		return "", fmt.Errorf("put commit: nil commit")
	}
	tree, err := toGitHash(c.TreeHash)
	if err != nil {
		return "", fmt.Errorf("put commit: tree: %w", err)
	}
	sig := parseSignature(c.Author, c.Timestamp)
	gc := &gitobject.Commit{
		Author:       sig,
		Committer:    sig,
		PGPSignature: c.Signature,
		Message:      c.Message,
		TreeHash:     tree,
	}
	if c.Parent != "" {
		parent, err := toGitHash(c.Parent)
		if err != nil {
			return "", fmt.Errorf("put commit: parent: %w", err)
		}
		gc.ParentHashes = []plumbing.Hash{parent}
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := gc.Encode(obj); err != nil {
		return "", fmt.Errorf("encode commit: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("store commit: %w", err)
	}
	return fromGitHash(h), nil
}

// ReadCommit reads a git commit. Merge commits are rejected.
func (s *Store) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	gh, err := toGitHash(h)
	if err != nil {
		return nil, err
	}
	gc, err := gitobject.GetCommit(s.repo.Storer, gh)
	if err != nil {
		return nil, mapErr(err, h)
	}
	if len(gc.ParentHashes) > 1 {
		return nil, fmt.Errorf("commit %s has %d parents; only linear history is supported", h.Short(), len(gc.ParentHashes))
	}
	c := &object.CommitObj{
		TreeHash:  fromGitHash(gc.TreeHash),
		Author:    formatSignature(gc.Author),
		Timestamp: gc.Author.When.Unix(),
		Signature: gc.PGPSignature,
		Message:   gc.Message,
	}
	if len(gc.ParentHashes) == 1 {
		c.Parent = fromGitHash(gc.ParentHashes[0])
	}
	return c, nil
}

// parseSignature splits "Name <email>"; a bare string is used as the name.
func parseSignature(author string, ts int64) gitobject.Signature {
	sig := gitobject.Signature{Name: strings.TrimSpace(author), When: time.Unix(ts, 0).UTC()}
	open := strings.LastIndexByte(author, '<')
	end := strings.LastIndexByte(author, '>')
	if open >= 0 && end > open {
		sig.Name = strings.TrimSpace(author[:open])
		sig.Email = author[open+1 : end]
	}
	return sig
}

func formatSignature(sig gitobject.Signature) string {
	if sig.Email == "" {
		return sig.Name
	}
	return fmt.Sprintf("%s <%s>", sig.Name, sig.Email)
}
