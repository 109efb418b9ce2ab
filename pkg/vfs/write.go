package vfs

import (
	"fmt"
	"strings"

	"github.com/odvcencio/snapfs/pkg/object"
)

// WriteOption configures a single write call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	message   string
	kind      object.EntryKind
	kindSet   bool
	recursive bool
}

// WithMessage sets the commit message instead of the generated one.
func WithMessage(msg string) WriteOption {
	return func(o *writeOptions) { o.message = msg }
}

// WithKind sets the entry kind of written files.
func WithKind(kind object.EntryKind) WriteOption {
	return func(o *writeOptions) {
		o.kind = kind
		o.kindSet = true
	}
}

// WithRecursive allows Remove to delete a directory.
func WithRecursive() WriteOption {
	return func(o *writeOptions) { o.recursive = true }
}

func collectOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WriteEntry is one file for Apply. Like Write without WithKind, a zero
// Kind keeps the kind of an existing file (an executable stays executable)
// and is a regular file otherwise. Set KindSet to force KindBlob.
type WriteEntry struct {
	Data    []byte
	Kind    object.EntryKind
	KindSet bool
}

// Write stores data at path and returns the new snapshot.
func (f *Fs) Write(path string, data []byte, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	b := f.Batch()
	if err := b.Write(path, data, opts...); err != nil {
		return nil, err
	}
	return b.Commit(collectOptions(opts).message)
}

func (f *Fs) WriteText(path, text string, opts ...WriteOption) (*Fs, error) {
	return f.Write(path, []byte(text), opts...)
}

// WriteSymlink creates a symlink at path pointing at target.
func (f *Fs) WriteSymlink(path, target string, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	b := f.Batch()
	if err := b.WriteSymlink(path, target); err != nil {
		return nil, err
	}
	return b.Commit(collectOptions(opts).message)
}

// Remove deletes path. Directories require WithRecursive.
func (f *Fs) Remove(path string, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	clean, e, err := f.lookupPath(path)
	if err != nil {
		return nil, err
	}
	if clean == "" {
		return nil, fmt.Errorf("%w: cannot remove the root", ErrInvalidPath)
	}
	if e.Kind.IsDir() && !o.recursive {
		return nil, fmt.Errorf("%w: %s (use recursive removal)", ErrIsADirectory, clean)
	}
	b := f.Batch()
	if err := b.Remove(clean); err != nil {
		return nil, err
	}
	return b.Commit(o.message)
}

// Apply writes and removes several paths in one commit.
func (f *Fs) Apply(writes map[string]WriteEntry, removes []string, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	b := f.Batch()
	for _, p := range removes {
		if err := b.Remove(p); err != nil {
			return nil, err
		}
	}
	for _, p := range sortedKeys(writes) {
		w := writes[p]
		var err error
		if w.Kind == object.KindSymlink {
			err = b.WriteSymlink(p, string(w.Data))
		} else {
			var wopts []WriteOption
			if w.KindSet || w.Kind != object.KindBlob {
				wopts = append(wopts, WithKind(w.Kind))
			}
			err = b.Write(p, w.Data, wopts...)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Commit(collectOptions(opts).message)
}

// Rename moves src to dst. Renaming a directory moves every entry below
// it. An existing file at dst is replaced.
func (f *Fs) Rename(src, dst string, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	b := f.Batch()
	cleanSrc, cleanDst, err := f.stageRename(b, src, dst)
	if err != nil {
		return nil, err
	}
	msg := collectOptions(opts).message
	if msg == "" {
		msg = fmt.Sprintf("Rename %s -> %s", cleanSrc, cleanDst)
	}
	return b.Commit(msg)
}

// Move moves each source into the directory dst, keeping base names. With
// a single source and a dst that is not an existing directory it is a
// rename.
func (f *Fs) Move(srcs []string, dst string, opts ...WriteOption) (*Fs, error) {
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: nothing to move", ErrInvalidPath)
	}
	cleanDst, err := cleanPath(dst)
	if err != nil {
		return nil, err
	}
	dstIsDir, err := f.IsDir(cleanDst)
	if err != nil {
		return nil, err
	}
	if len(srcs) == 1 && !dstIsDir {
		return f.Rename(srcs[0], cleanDst, opts...)
	}
	if !dstIsDir {
		exists, err := f.Exists(cleanDst)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, cleanDst)
		}
	}

	b := f.Batch()
	moved := make([]string, 0, len(srcs))
	for _, src := range srcs {
		cleanSrc, err := cleanLeafPath(src)
		if err != nil {
			return nil, err
		}
		if _, _, err := f.stageRename(b, cleanSrc, joinPath(cleanDst, baseName(cleanSrc))); err != nil {
			return nil, err
		}
		moved = append(moved, cleanSrc)
	}
	msg := collectOptions(opts).message
	if msg == "" {
		msg = fmt.Sprintf("Move %s -> %s", strings.Join(moved, ", "), joinPathOrRoot(cleanDst))
	}
	return b.Commit(msg)
}

// stageRename stages the writes and removes that move src to dst, reusing
// the existing blobs.
func (f *Fs) stageRename(b *Batch, src, dst string) (string, string, error) {
	cleanSrc, e, err := f.lookupPath(src)
	if err != nil {
		return "", "", err
	}
	if cleanSrc == "" {
		return "", "", fmt.Errorf("%w: cannot move the root", ErrInvalidPath)
	}
	cleanDst, err := cleanLeafPath(dst)
	if err != nil {
		return "", "", err
	}
	if isWithin(cleanDst, cleanSrc) {
		return "", "", fmt.Errorf("%w: cannot move %s into itself", ErrInvalidPath, cleanSrc)
	}

	dstIsDir, err := f.IsDir(cleanDst)
	if err != nil {
		return "", "", err
	}

	if !e.Kind.IsDir() {
		if dstIsDir {
			return "", "", fmt.Errorf("%w: %s", ErrIsADirectory, cleanDst)
		}
		if err := b.writeHash(cleanDst, e.Hash, e.Kind); err != nil {
			return "", "", err
		}
		return cleanSrc, cleanDst, b.Remove(cleanSrc)
	}

	dstExists, err := f.Exists(cleanDst)
	if err != nil {
		return "", "", err
	}
	if dstExists && !dstIsDir {
		return "", "", fmt.Errorf("%w: %s", ErrNotADirectory, cleanDst)
	}
	leaves, err := f.leaves(cleanSrc)
	if err != nil {
		return "", "", err
	}
	if dstExists {
		if err := b.Remove(cleanDst); err != nil {
			return "", "", err
		}
	}
	for _, p := range sortedKeys(leaves) {
		leaf := leaves[p]
		target := cleanDst + strings.TrimPrefix(p, cleanSrc)
		if err := b.writeHash(target, leaf.Hash, leaf.Kind); err != nil {
			return "", "", err
		}
	}
	return cleanSrc, cleanDst, b.Remove(cleanSrc)
}
