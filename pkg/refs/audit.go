package refs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/odvcencio/snapfs/pkg/object"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind classifies an audit entry. Redo relies on the kind, never on the
// message text.
type Kind string

const (
	KindWrite  Kind = "write"
	KindUndo   Kind = "undo"
	KindRedo   Kind = "redo"
	KindCreate Kind = "create"
	KindSet    Kind = "set"
	KindDelete Kind = "delete"
)

func (k Kind) valid() bool {
	switch k {
	case KindWrite, KindUndo, KindRedo, KindCreate, KindSet, KindDelete:
		return true
	}
	return false
}

// Entry is one ref update. Old is empty when the ref was created and New is
// empty when it was deleted.
type Entry struct {
	Old       object.Hash
	New       object.Hash
	Kind      Kind
	Timestamp int64
	Message   string
}

// EncodeEntry renders e as a single log line:
//
//	old new timestamp kind message
func EncodeEntry(e Entry) string {
	old := string(e.Old)
	if old == "" {
		old = zeroHash
	}
	newVal := string(e.New)
	if newVal == "" {
		newVal = zeroHash
	}
	kind := e.Kind
	if !kind.valid() {
		kind = KindWrite
	}
	msg := strings.NewReplacer("\n", " ", "\r", " ").Replace(e.Message)
	return fmt.Sprintf("%s %s %d %s %s\n", old, newVal, e.Timestamp, kind, msg)
}

// DecodeEntry parses a line produced by EncodeEntry.
func DecodeEntry(line string) (Entry, error) {
	parts := strings.SplitN(strings.TrimRight(line, "\n"), " ", 5)
	if len(parts) < 4 {
		return Entry{}, fmt.Errorf("decode audit entry: malformed line %q", line)
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("decode audit entry: bad timestamp %q: %w", parts[2], err)
	}
	kind := Kind(parts[3])
	if !kind.valid() {
		return Entry{}, fmt.Errorf("decode audit entry: unknown kind %q", parts[3])
	}
	e := Entry{
		Old:       fromLogHash(parts[0]),
		New:       fromLogHash(parts[1]),
		Kind:      kind,
		Timestamp: ts,
	}
	if len(parts) == 5 {
		e.Message = parts[4]
	}
	return e, nil
}

func fromLogHash(s string) object.Hash {
	if strings.Trim(s, "0") == "" {
		return ""
	}
	return object.Hash(s)
}

// AppendFile appends e to the audit log at path, creating parent
// directories as needed.
func AppendFile(path string, e Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("audit mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(EncodeEntry(e)); err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}

// ReadFile reads the audit log at path, oldest entry first. A missing log
// yields no entries. Malformed lines are skipped.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := DecodeEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return entries, nil
}
