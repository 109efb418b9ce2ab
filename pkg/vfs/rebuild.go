package vfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/snapfs/pkg/object"
)

// pendingWrite is one staged leaf. Exactly one of data or hash is used:
// hash refers to a blob already in the store (renames re-stage content by
// reference).
type pendingWrite struct {
	data    []byte
	hash    object.Hash
	kind    object.EntryKind
	kindSet bool
	// replace is set when the write evicted a staged remove of the same
	// path: the write replaces whatever entry is there, directories
	// included, and inherits nothing from it.
	replace bool
}

// changeSet is the staged state of a batch. A path is never in both maps.
type changeSet struct {
	writes  map[string]pendingWrite
	removes map[string]struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		writes:  make(map[string]pendingWrite),
		removes: make(map[string]struct{}),
	}
}

func (cs *changeSet) write(path string, w pendingWrite) {
	if _, ok := cs.removes[path]; ok {
		w.replace = true
		delete(cs.removes, path)
	} else if prev, ok := cs.writes[path]; ok && prev.replace {
		w.replace = true
	}
	cs.writes[path] = w
}

func (cs *changeSet) remove(path string) {
	delete(cs.writes, path)
	cs.removes[path] = struct{}{}
}

func (cs *changeSet) empty() bool {
	return len(cs.writes) == 0 && len(cs.removes) == 0
}

// treePlan is the read-only result of phase one for a single directory.
type treePlan struct {
	base        object.Hash
	baseEntries []object.TreeEntry
	entries     map[string]*plannedEntry
}

type plannedEntry struct {
	entry object.TreeEntry
	blob  *pendingWrite
	sub   *treePlan
}

// rebuildTree applies cs to the tree base and returns the new root tree
// hash. An empty base means the empty tree. Planning reads only; nothing is
// written unless the whole change set is valid.
func rebuildTree(b Backend, base object.Hash, cs *changeSet) (object.Hash, error) {
	var (
		plan *treePlan
		err  error
	)
	if !cs.empty() {
		plan, err = planTree(b, base, "", cs.writes, cs.removes)
		if err != nil {
			return "", err
		}
	}
	if plan == nil {
		if base != "" {
			return base, nil
		}
		return b.PutTree(nil)
	}

	root, err := materialize(b, plan)
	if err != nil {
		return "", err
	}
	if root == "" {
		return b.PutTree(nil)
	}
	return root, nil
}

// planTree groups changes by first segment and recurses into touched
// subtrees. dir is used only for error messages.
func planTree(b Backend, base object.Hash, dir string, writes map[string]pendingWrite, removes map[string]struct{}) (*treePlan, error) {
	plan := &treePlan{base: base, entries: make(map[string]*plannedEntry)}
	if base != "" {
		entries, err := b.ReadTree(base)
		if err != nil {
			return nil, fmt.Errorf("read tree %s: %w", joinPathOrRoot(dir), notFound(err))
		}
		plan.baseEntries = entries
		for _, e := range entries {
			plan.entries[e.Name] = &plannedEntry{entry: e}
		}
	}

	leafWrites := make(map[string]pendingWrite)
	leafRemoves := make(map[string]bool)
	subWrites := make(map[string]map[string]pendingWrite)
	subRemoves := make(map[string]map[string]struct{})

	for p, w := range writes {
		head, rest, deeper := strings.Cut(p, "/")
		if !deeper {
			leafWrites[head] = w
			continue
		}
		if subWrites[head] == nil {
			subWrites[head] = make(map[string]pendingWrite)
		}
		subWrites[head][rest] = w
	}
	for p := range removes {
		head, rest, deeper := strings.Cut(p, "/")
		if !deeper {
			leafRemoves[head] = true
			continue
		}
		if subRemoves[head] == nil {
			subRemoves[head] = make(map[string]struct{})
		}
		subRemoves[head][rest] = struct{}{}
	}

	for name := range leafRemoves {
		delete(plan.entries, name)
	}

	for name, w := range leafWrites {
		if _, ok := subWrites[name]; ok {
			return nil, fmt.Errorf("%w: %s is written as a file and as a directory", ErrNotADirectory, joinPath(dir, name))
		}
		prev, exists := plan.entries[name]
		if w.replace {
			exists = false
		}
		if exists && prev.entry.Kind.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrIsADirectory, joinPath(dir, name))
		}
		kind := w.kind
		if !w.kindSet {
			kind = object.KindBlob
			if exists && prev.entry.Kind == object.KindExecutable {
				kind = object.KindExecutable
			}
		}
		pw := w
		plan.entries[name] = &plannedEntry{
			entry: object.TreeEntry{Name: name, Kind: kind, Hash: w.hash},
			blob:  &pw,
		}
	}

	names := make(map[string]struct{}, len(subWrites)+len(subRemoves))
	for name := range subWrites {
		names[name] = struct{}{}
	}
	for name := range subRemoves {
		names[name] = struct{}{}
	}
	for name := range names {
		if _, ok := leafWrites[name]; ok {
			// The leaf write replaces the entry, so deeper removes have
			// nothing left to act on.
			continue
		}
		sw := subWrites[name]
		var subBase object.Hash
		if prev, ok := plan.entries[name]; ok {
			if !prev.entry.Kind.IsDir() {
				if len(sw) > 0 {
					return nil, fmt.Errorf("%w: %s", ErrNotADirectory, joinPath(dir, name))
				}
				continue
			}
			subBase = prev.entry.Hash
		}
		if subBase == "" && len(sw) == 0 {
			continue
		}
		sub, err := planTree(b, subBase, joinPath(dir, name), sw, subRemoves[name])
		if err != nil {
			return nil, err
		}
		plan.entries[name] = &plannedEntry{
			entry: object.TreeEntry{Name: name, Kind: object.KindTree, Hash: subBase},
			sub:   sub,
		}
	}
	return plan, nil
}

// materialize writes blobs, then trees bottom-up. It returns "" for a
// directory left with no entries. A level identical to its base returns the
// base hash without writing a tree.
func materialize(b Backend, plan *treePlan) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(plan.entries))
	for _, pe := range plan.entries {
		e := pe.entry
		switch {
		case pe.blob != nil && pe.blob.hash == "":
			h, err := b.PutBlob(pe.blob.data)
			if err != nil {
				return "", fmt.Errorf("write blob %s: %w", e.Name, err)
			}
			e.Hash = h
		case pe.sub != nil:
			h, err := materialize(b, pe.sub)
			if err != nil {
				return "", err
			}
			if h == "" {
				continue
			}
			e.Hash = h
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if plan.base != "" && sameEntries(entries, plan.baseEntries) {
		return plan.base, nil
	}
	if len(entries) == 0 {
		return "", nil
	}
	h, err := b.PutTree(entries)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return h, nil
}

// sameEntries compares a name-sorted slice with a backend's entry list.
func sameEntries(a, b []object.TreeEntry) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := object.SortedEntries(b)
	for i := range a {
		if a[i] != sorted[i] {
			return false
		}
	}
	return true
}

func joinPathOrRoot(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}
