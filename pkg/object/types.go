package object

import (
	"errors"
	"fmt"
)

// Hash is a lowercase hex-encoded object digest. The native store uses
// SHA-256 (64 characters); git-compatible backends use SHA-1 (40 characters).
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// ErrNotFound is wrapped by every backend when an object does not exist.
var ErrNotFound = errors.New("object not found")

// EntryKind is the type of a tree entry.
type EntryKind uint8

const (
	KindBlob EntryKind = iota
	KindExecutable
	KindSymlink
	KindTree
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
)

// Mode returns the git mode string for k.
func (k EntryKind) Mode() string {
	switch k {
	case KindTree:
		return TreeModeDir
	case KindExecutable:
		return TreeModeExecutable
	case KindSymlink:
		return TreeModeSymlink
	default:
		return TreeModeFile
	}
}

// IsDir reports whether k is a directory.
func (k EntryKind) IsDir() bool { return k == KindTree }

func (k EntryKind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindExecutable:
		return "executable"
	case KindSymlink:
		return "symlink"
	default:
		return "blob"
	}
}

// KindFromMode parses a git mode string.
func KindFromMode(mode string) (EntryKind, error) {
	switch mode {
	case TreeModeDir, "040000":
		return KindTree, nil
	case TreeModeFile:
		return KindBlob, nil
	case TreeModeExecutable:
		return KindExecutable, nil
	case TreeModeSymlink:
		return KindSymlink, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Kind EntryKind
	Hash Hash
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// CommitObj is a snapshot of a tree with its single parent. History is
// linear: Parent is empty only for a root commit.
type CommitObj struct {
	TreeHash  Hash
	Parent    Hash
	Author    string
	Timestamp int64
	Signature string
	Message   string
}
