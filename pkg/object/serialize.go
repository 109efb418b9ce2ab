package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	mode hash name
//
// where mode is a Git-compatible mode string (40000, 100644, 100755, 120000).
// The name comes last so it may contain spaces.
func MarshalTree(tr *TreeObj) []byte {
	sorted := SortedEntries(tr.Entries)

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\n", e.Kind.Mode(), e.Hash, e.Name)
	}
	return buf.Bytes()
}

// SortedEntries returns a copy of entries sorted by Name.
func SortedEntries(entries []TreeEntry) []TreeEntry {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		kind, err := KindFromMode(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: parts[2],
			Kind: kind,
			Hash: Hash(parts[1]),
		})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (omitted for a root commit)
//	author A
//	timestamp T
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	if c.Parent != "" {
		fmt.Fprintf(&buf, "parent %s\n", string(c.Parent))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			if c.Parent != "" {
				return nil, fmt.Errorf("unmarshal commit: multiple parents")
			}
			c.Parent = Hash(val)
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload intentionally excludes the signature field itself.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	copyCommit := *c
	copyCommit.Signature = ""
	return MarshalCommit(&copyCommit)
}
