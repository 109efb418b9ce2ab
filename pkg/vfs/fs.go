package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// Fs is an immutable snapshot: a commit and its tree, optionally bound to a
// ref. Reads never lock. Writes return a new *Fs and leave the receiver
// unchanged.
//
// A branch snapshot with no commit is empty; writing to it creates the
// branch.
type Fs struct {
	store    *Store
	commit   object.Hash
	tree     object.Hash
	ref      string
	writable bool
	info     *object.CommitObj
}

// DirEntry is one child of a directory.
type DirEntry struct {
	Name string
	Kind object.EntryKind
	Hash object.Hash
}

// Info describes the entry at a path.
type Info struct {
	Path string
	Name string
	Kind object.EntryKind
	Hash object.Hash
	// Size is the blob length; zero for directories.
	Size int64
}

// Mode returns the git mode string of the entry.
func (i Info) Mode() string { return i.Kind.Mode() }

// IsDir reports whether the entry is a directory.
func (i Info) IsDir() bool { return i.Kind.IsDir() }

// Store returns the store the snapshot was read from.
func (f *Fs) Store() *Store { return f.store }

// CommitHash is empty for a branch that has no commits yet.
func (f *Fs) CommitHash() object.Hash { return f.commit }

func (f *Fs) TreeHash() object.Hash { return f.tree }

// RefName is the full ref name, or "" for a detached snapshot.
func (f *Fs) RefName() string { return f.ref }

// Name is the short branch or tag name.
func (f *Fs) Name() string {
	name := strings.TrimPrefix(f.ref, refs.HeadsPrefix)
	return strings.TrimPrefix(name, refs.TagsPrefix)
}

func (f *Fs) Writable() bool { return f.writable }

func (f *Fs) Message() string {
	if f.info == nil {
		return ""
	}
	return f.info.Message
}

func (f *Fs) Author() string {
	if f.info == nil {
		return ""
	}
	return f.info.Author
}

// Time is the commit timestamp, or the zero time for an empty snapshot.
func (f *Fs) Time() time.Time {
	if f.info == nil {
		return time.Time{}
	}
	return time.Unix(f.info.Timestamp, 0)
}

func (f *Fs) String() string {
	ref := f.ref
	if ref == "" {
		ref = "detached"
	}
	return fmt.Sprintf("%s@%s", ref, displayHash(f.commit))
}

// Empty returns a read-only snapshot of the empty tree in f's store, useful
// as the left side of a diff against a root commit.
func (f *Fs) Empty() *Fs {
	return &Fs{store: f.store}
}

func (f *Fs) checkWritable() error {
	switch {
	case f.ref == "":
		return fmt.Errorf("%w: detached snapshot %s is read-only", ErrPermission, displayHash(f.commit))
	case refs.IsTag(f.ref):
		return fmt.Errorf("%w: tag %s is read-only", ErrPermission, f.Name())
	case !f.writable:
		return fmt.Errorf("%w: snapshot of %s is read-only", ErrPermission, f.ref)
	}
	return nil
}

func (f *Fs) readTree(h object.Hash) ([]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	entries, err := f.store.backend.ReadTree(h)
	if err != nil {
		return nil, notFound(err)
	}
	return object.SortedEntries(entries), nil
}

// lookup resolves a cleaned path. The root resolves to a synthetic tree
// entry.
func (f *Fs) lookup(p string) (object.TreeEntry, error) {
	cur := object.TreeEntry{Kind: object.KindTree, Hash: f.tree}
	if p == "" {
		return cur, nil
	}
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		if !cur.Kind.IsDir() {
			return object.TreeEntry{}, fmt.Errorf("%w: %s", ErrNotADirectory, strings.Join(segs[:i], "/"))
		}
		entries, err := f.readTree(cur.Hash)
		if err != nil {
			return object.TreeEntry{}, err
		}
		found := false
		for _, e := range entries {
			if e.Name == seg {
				cur = e
				found = true
				break
			}
		}
		if !found {
			return object.TreeEntry{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
	}
	return cur, nil
}

func (f *Fs) lookupPath(p string) (string, object.TreeEntry, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return "", object.TreeEntry{}, err
	}
	e, err := f.lookup(clean)
	return clean, e, err
}

// Exists reports whether path names an entry. A path running through a
// file does not exist.
func (f *Fs) Exists(path string) (bool, error) {
	_, _, err := f.lookupPath(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotADirectory):
		return false, nil
	}
	return false, err
}

// IsDir reports whether path names a directory.
func (f *Fs) IsDir(path string) (bool, error) {
	_, e, err := f.lookupPath(path)
	switch {
	case err == nil:
		return e.Kind.IsDir(), nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotADirectory):
		return false, nil
	}
	return false, err
}

// Stat describes the entry at path.
func (f *Fs) Stat(path string) (Info, error) {
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return Info{}, err
	}
	info := Info{Path: clean, Name: baseName(clean), Kind: e.Kind, Hash: e.Hash}
	if !e.Kind.IsDir() {
		data, err := f.store.backend.ReadBlob(e.Hash)
		if err != nil {
			return Info{}, notFound(err)
		}
		info.Size = int64(len(data))
	}
	return info, nil
}

// ObjectHash returns the hash of the blob or tree at path.
func (f *Fs) ObjectHash(path string) (object.Hash, error) {
	_, e, err := f.lookupPath(path)
	if err != nil {
		return "", err
	}
	return e.Hash, nil
}

// Read returns the content of the file at path. For a symlink this is the
// link target.
func (f *Fs) Read(path string) ([]byte, error) {
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return nil, err
	}
	if e.Kind.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsADirectory, clean)
	}
	data, err := f.store.backend.ReadBlob(e.Hash)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, notFound(err))
	}
	return data, nil
}

func (f *Fs) ReadText(path string) (string, error) {
	data, err := f.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Readlink returns the target of the symlink at path.
func (f *Fs) Readlink(path string) (string, error) {
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return "", err
	}
	if e.Kind != object.KindSymlink {
		return "", fmt.Errorf("%w: %s is not a symlink", ErrInvalidPath, clean)
	}
	data, err := f.store.backend.ReadBlob(e.Hash)
	if err != nil {
		return "", notFound(err)
	}
	return string(data), nil
}

// ListDir returns the entries of the directory at path, sorted by name.
func (f *Fs) ListDir(path string) ([]DirEntry, error) {
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return nil, err
	}
	if !e.Kind.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, clean)
	}
	entries, err := f.readTree(e.Hash)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, len(entries))
	for i, te := range entries {
		out[i] = DirEntry{Name: te.Name, Kind: te.Kind, Hash: te.Hash}
	}
	return out, nil
}

// Ls returns the names in the directory at path.
func (f *Fs) Ls(path string) ([]string, error) {
	entries, err := f.ListDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// WalkFunc is called for every entry below the walk root in depth-first,
// name order. Returning fs.SkipDir from a directory skips its children and
// from a file skips the rest of its directory. fs.SkipAll stops the walk.
type WalkFunc func(path string, e DirEntry) error

// Walk visits every entry below path.
func (f *Fs) Walk(path string, fn WalkFunc) error {
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return err
	}
	if !e.Kind.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, clean)
	}
	err = f.walk(clean, e.Hash, fn)
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (f *Fs) walk(dir string, h object.Hash, fn WalkFunc) error {
	entries, err := f.readTree(h)
	if err != nil {
		return err
	}
	for _, te := range entries {
		p := joinPath(dir, te.Name)
		err := fn(p, DirEntry{Name: te.Name, Kind: te.Kind, Hash: te.Hash})
		if te.Kind.IsDir() {
			if errors.Is(err, fs.SkipDir) {
				continue
			}
			if err != nil {
				return err
			}
			if err := f.walk(p, te.Hash, fn); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// leaves returns every non-directory entry below dir keyed by path.
func (f *Fs) leaves(dir string) (map[string]DirEntry, error) {
	out := make(map[string]DirEntry)
	err := f.Walk(dir, func(p string, e DirEntry) error {
		if !e.Kind.IsDir() {
			out[p] = e
		}
		return nil
	})
	return out, err
}
