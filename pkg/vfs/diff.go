package vfs

import (
	"fmt"
	"sort"

	"github.com/odvcencio/snapfs/pkg/object"
)

// ChangeType classifies a Change.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Deleted
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// Change is a file that differs between two snapshots. Old is the zero
// entry for additions and New for deletions.
type Change struct {
	Path string
	Type ChangeType
	Old  DirEntry
	New  DirEntry
}

// Diff lists the files that differ from a to b, sorted by path. Subtrees
// with equal hashes are skipped without being read. A change of kind alone
// (for example a file becoming executable) is a modification.
func Diff(a, b *Fs) ([]Change, error) {
	if a.store != b.store {
		return nil, fmt.Errorf("diff: snapshots belong to different stores")
	}
	var out []Change
	if err := diffTrees(a, "", a.tree, b.tree, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func diffTrees(f *Fs, dir string, oldTree, newTree object.Hash, out *[]Change) error {
	if oldTree == newTree {
		return nil
	}
	oldEntries, err := f.readTree(oldTree)
	if err != nil {
		return err
	}
	newEntries, err := f.readTree(newTree)
	if err != nil {
		return err
	}

	oldByName := make(map[string]object.TreeEntry, len(oldEntries))
	for _, e := range oldEntries {
		oldByName[e.Name] = e
	}
	newByName := make(map[string]object.TreeEntry, len(newEntries))
	for _, e := range newEntries {
		newByName[e.Name] = e
	}

	for _, o := range oldEntries {
		p := joinPath(dir, o.Name)
		n, ok := newByName[o.Name]
		switch {
		case !ok:
			if err := diffSide(f, p, o, Deleted, out); err != nil {
				return err
			}
		case o.Kind.IsDir() && n.Kind.IsDir():
			if err := diffTrees(f, p, o.Hash, n.Hash, out); err != nil {
				return err
			}
		case o.Kind.IsDir() != n.Kind.IsDir():
			if err := diffSide(f, p, o, Deleted, out); err != nil {
				return err
			}
			if err := diffSide(f, p, n, Added, out); err != nil {
				return err
			}
		case o.Hash != n.Hash || o.Kind != n.Kind:
			*out = append(*out, Change{Path: p, Type: Modified, Old: dirEntry(o), New: dirEntry(n)})
		}
	}
	for _, n := range newEntries {
		if _, ok := oldByName[n.Name]; ok {
			continue
		}
		if err := diffSide(f, joinPath(dir, n.Name), n, Added, out); err != nil {
			return err
		}
	}
	return nil
}

// diffSide records every file at or below e as added or deleted.
func diffSide(f *Fs, p string, e object.TreeEntry, t ChangeType, out *[]Change) error {
	record := func(path string, de DirEntry) {
		c := Change{Path: path, Type: t}
		if t == Added {
			c.New = de
		} else {
			c.Old = de
		}
		*out = append(*out, c)
	}
	if !e.Kind.IsDir() {
		record(p, dirEntry(e))
		return nil
	}
	return f.walk(p, e.Hash, func(path string, de DirEntry) error {
		if !de.Kind.IsDir() {
			record(path, de)
		}
		return nil
	})
}

func dirEntry(e object.TreeEntry) DirEntry {
	return DirEntry{Name: e.Name, Kind: e.Kind, Hash: e.Hash}
}
