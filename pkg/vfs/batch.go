package vfs

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/odvcencio/snapfs/pkg/object"
)

// Batch stages writes and removes against a snapshot and publishes them as
// a single commit. Staging does no store I/O. A Batch is single-use: after
// Commit every call returns ErrBatchClosed.
type Batch struct {
	fs *Fs

	mu     sync.Mutex
	cs     *changeSet
	closed bool
}

// Batch starts a batch on top of f.
func (f *Fs) Batch() *Batch {
	return &Batch{fs: f, cs: newChangeSet()}
}

func (b *Batch) stage(path string, fn func(clean string)) error {
	clean, err := cleanLeafPath(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatchClosed
	}
	fn(clean)
	return nil
}

func (b *Batch) stageWrite(path string, w pendingWrite) error {
	if w.kindSet && w.kind.IsDir() {
		return fmt.Errorf("%w: cannot write %s as a directory", ErrIsADirectory, path)
	}
	return b.stage(path, func(clean string) { b.cs.write(clean, w) })
}

// Write stages data at path. Unless WithKind is given, an existing
// executable keeps its kind and anything else becomes a regular file.
func (b *Batch) Write(path string, data []byte, opts ...WriteOption) error {
	o := collectOptions(opts)
	return b.stageWrite(path, pendingWrite{
		data:    bytes.Clone(data),
		kind:    o.kind,
		kindSet: o.kindSet,
	})
}

func (b *Batch) WriteText(path, text string, opts ...WriteOption) error {
	return b.Write(path, []byte(text), opts...)
}

// WriteSymlink stages a symlink at path pointing at target.
func (b *Batch) WriteSymlink(path, target string) error {
	if target == "" {
		return fmt.Errorf("%w: empty symlink target", ErrInvalidPath)
	}
	return b.stageWrite(path, pendingWrite{
		data:    []byte(target),
		kind:    object.KindSymlink,
		kindSet: true,
	})
}

// writeHash stages an existing blob at path.
func (b *Batch) writeHash(path string, h object.Hash, kind object.EntryKind) error {
	return b.stageWrite(path, pendingWrite{hash: h, kind: kind, kindSet: true})
}

// Remove stages the removal of path. A directory is removed with everything
// below it. Removing a path that does not exist is not an error.
func (b *Batch) Remove(path string) error {
	return b.stage(path, func(clean string) { b.cs.remove(clean) })
}

// Writer returns a streaming writer whose content is staged at path when
// it is closed.
func (b *Batch) Writer(path string, opts ...WriteOption) (*Writer, error) {
	clean, err := cleanLeafPath(path)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrBatchClosed
	}
	return &Writer{batch: b, path: clean, opts: collectOptions(opts)}, nil
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cs.writes) + len(b.cs.removes)
}

// Commit publishes the staged changes as one commit and closes the batch.
// An empty batch still commits, repeating the parent's tree. An empty
// message is replaced by a summary of the staged operations.
func (b *Batch) Commit(message string) (*Fs, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBatchClosed
	}
	b.closed = true
	cs := b.cs
	b.mu.Unlock()

	if message == "" {
		message = autoMessage(cs)
	}
	return b.fs.store.publish(b.fs, cs, message)
}

func autoMessage(cs *changeSet) string {
	nw, nr := len(cs.writes), len(cs.removes)
	switch {
	case nw == 1 && nr == 0:
		for p := range cs.writes {
			return "Write " + p
		}
	case nw == 0 && nr == 1:
		for p := range cs.removes {
			return "Remove " + p
		}
	}
	return fmt.Sprintf("Batch: %d write(s), %d remove(s)", nw, nr)
}

// Writer accumulates the content of a single path. Close stages it in the
// owning batch; nothing is written to the store until the batch commits.
type Writer struct {
	batch  *Batch
	path   string
	opts   writeOptions
	buf    bytes.Buffer
	closed bool
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

// Close stages the accumulated content. It fails with ErrBatchClosed when
// the batch was committed first.
func (w *Writer) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	return w.batch.stageWrite(w.path, pendingWrite{
		data:    w.buf.Bytes(),
		kind:    w.opts.kind,
		kindSet: w.opts.kindSet,
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
