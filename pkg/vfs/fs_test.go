package vfs

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/odvcencio/snapfs/pkg/object"
)

func seedTree(t *testing.T, s *Store) *Fs {
	t.Helper()
	f, err := mainBranch(t, s).Apply(map[string]WriteEntry{
		"README.md":      {Data: []byte("# readme\n")},
		"src/main.go":    {Data: []byte("package main\n")},
		"src/util/u.go":  {Data: []byte("package util\n")},
		"bin/run":        {Data: []byte("#!/bin/sh\n"), Kind: object.KindExecutable},
		"docs/guide.txt": {Data: []byte("guide")},
	}, nil, WithMessage("seed"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return f
}

func TestReadSurface(t *testing.T) {
	s := newTestStore(t)
	f := seedTree(t, s)

	if ok, err := f.Exists("src/util/u.go"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if ok, err := f.Exists("README.md/x"); err != nil || ok {
		t.Fatalf("Exists through file = %v, %v", ok, err)
	}
	if ok, err := f.IsDir("src"); err != nil || !ok {
		t.Fatalf("IsDir(src) = %v, %v", ok, err)
	}
	if ok, err := f.IsDir("README.md"); err != nil || ok {
		t.Fatalf("IsDir(README.md) = %v, %v", ok, err)
	}
	if ok, err := f.IsDir(""); err != nil || !ok {
		t.Fatalf("IsDir(root) = %v, %v", ok, err)
	}

	info, err := f.Stat("/src/main.go")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Path != "src/main.go" || info.Name != "main.go" || info.Size != int64(len("package main\n")) {
		t.Fatalf("Stat = %+v", info)
	}
	info, err = f.Stat("bin/run")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode() != object.TreeModeExecutable {
		t.Fatalf("mode = %s", info.Mode())
	}

	names, err := f.Ls("")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if strings.Join(names, ",") != "README.md,bin,docs,src" {
		t.Fatalf("Ls = %v", names)
	}
	if _, err := f.Ls("README.md"); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("Ls on file: %v", err)
	}
	if _, err := f.Read("src"); !errors.Is(err, ErrIsADirectory) {
		t.Fatalf("Read on dir: %v", err)
	}
	if _, err := f.Read("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: %v", err)
	}

	h, err := f.ObjectHash("src/main.go")
	if err != nil {
		t.Fatalf("ObjectHash: %v", err)
	}
	data, err := s.ReadObject(h)
	if err != nil || string(data) != "package main\n" {
		t.Fatalf("ReadObject = %q, %v", data, err)
	}
	if _, err := s.ReadObject("zz"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("ReadObject invalid: %v", err)
	}
}

func TestWalkOrderAndSkip(t *testing.T) {
	s := newTestStore(t)
	f := seedTree(t, s)

	var visited []string
	err := f.Walk("", func(p string, e DirEntry) error {
		visited = append(visited, p)
		if p == "docs" {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := "README.md bin bin/run docs src src/main.go src/util src/util/u.go"
	if got := strings.Join(visited, " "); got != want {
		t.Fatalf("walk order:\n got %s\nwant %s", got, want)
	}

	visited = nil
	err = f.Walk("src", func(p string, e DirEntry) error {
		visited = append(visited, p)
		return fs.SkipAll
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(visited) != 1 || visited[0] != "src/main.go" {
		t.Fatalf("SkipAll visited %v", visited)
	}
}

func TestInvalidPaths(t *testing.T) {
	s := newTestStore(t)
	f := mainBranch(t, s)
	for _, p := range []string{"../x", "a//b", "a/./b", "a/..", "a\x00b"} {
		if _, err := f.WriteText(p, "x"); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("WriteText(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
	if _, err := f.WriteText("/", "x"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("write root: %v", err)
	}
	if got := mainBranch(t, s).CommitHash(); got != "" {
		t.Fatalf("branch created by invalid writes: %s", got)
	}
}

func TestSymlink(t *testing.T) {
	s := newTestStore(t)
	f, err := mainBranch(t, s).WriteSymlink("link", "target/file")
	if err != nil {
		t.Fatalf("WriteSymlink: %v", err)
	}
	got, err := f.Readlink("link")
	if err != nil || got != "target/file" {
		t.Fatalf("Readlink = %q, %v", got, err)
	}
	f = mustWrite(t, f, "plain", "x")
	if _, err := f.Readlink("plain"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("Readlink on file: %v", err)
	}
	info, err := f.Stat("link")
	if err != nil || info.Kind != object.KindSymlink {
		t.Fatalf("Stat = %+v, %v", info, err)
	}
}

func TestRemoveDirectoryNeedsRecursive(t *testing.T) {
	s := newTestStore(t)
	f := seedTree(t, s)

	if _, err := f.Remove("src"); !errors.Is(err, ErrIsADirectory) {
		t.Fatalf("expected ErrIsADirectory, got %v", err)
	}
	g, err := f.Remove("src", WithRecursive())
	if err != nil {
		t.Fatalf("Remove recursive: %v", err)
	}
	mustNotExist(t, g, "src")
	if _, err := g.Remove("src"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove missing: %v", err)
	}
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	f := seedTree(t, s)

	g, err := f.Rename("README.md", "docs/README.md")
	if err != nil {
		t.Fatalf("Rename file: %v", err)
	}
	mustNotExist(t, g, "README.md")
	if got := readString(t, g, "docs/README.md"); got != "# readme\n" {
		t.Fatalf("moved content = %q", got)
	}
	if g.Message() != "Rename README.md -> docs/README.md" {
		t.Fatalf("message = %q", g.Message())
	}

	h, err := g.Rename("src", "lib/src")
	if err != nil {
		t.Fatalf("Rename dir: %v", err)
	}
	mustNotExist(t, h, "src")
	if got := readString(t, h, "lib/src/util/u.go"); got != "package util\n" {
		t.Fatalf("moved nested = %q", got)
	}

	// Kinds survive a rename.
	k, err := h.Rename("bin/run", "run")
	if err != nil {
		t.Fatalf("Rename exec: %v", err)
	}
	info, err := k.Stat("run")
	if err != nil || info.Kind != object.KindExecutable {
		t.Fatalf("Stat = %+v, %v", info, err)
	}

	if _, err := k.Rename("lib", "lib/inner"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("rename into itself: %v", err)
	}
	if _, err := k.Rename("run", "docs"); !errors.Is(err, ErrIsADirectory) {
		t.Fatalf("rename file onto dir: %v", err)
	}
	if _, err := k.Rename("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename missing: %v", err)
	}
}

func TestMoveIntoDirectory(t *testing.T) {
	s := newTestStore(t)
	f := seedTree(t, s)

	g, err := f.Move([]string{"README.md", "bin"}, "archive")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	mustNotExist(t, g, "README.md")
	mustNotExist(t, g, "bin")
	if got := readString(t, g, "archive/README.md"); got != "# readme\n" {
		t.Fatalf("archive/README.md = %q", got)
	}
	if got := readString(t, g, "archive/bin/run"); got != "#!/bin/sh\n" {
		t.Fatalf("archive/bin/run = %q", got)
	}

	h, err := g.Move([]string{"docs/guide.txt"}, "src")
	if err != nil {
		t.Fatalf("Move single into dir: %v", err)
	}
	if got := readString(t, h, "src/guide.txt"); got != "guide" {
		t.Fatalf("src/guide.txt = %q", got)
	}

	if _, err := h.Move([]string{"src/main.go", "src/guide.txt"}, "archive/README.md"); !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("move onto file: %v", err)
	}
}

func TestReadOnlySnapshots(t *testing.T) {
	s := newTestStore(t)
	f := mustWrite(t, mainBranch(t, s), "a", "1")

	detached, err := s.At(f.CommitHash())
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if detached.Writable() || detached.RefName() != "" {
		t.Fatalf("detached = %v writable=%v", detached, detached.Writable())
	}
	if got := readString(t, detached, "a"); got != "1" {
		t.Fatalf("a = %q", got)
	}
	if _, err := detached.WriteText("a", "2"); !errors.Is(err, ErrPermission) {
		t.Fatalf("write detached: %v", err)
	}
	if _, err := s.At("not-a-hash"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("At invalid: %v", err)
	}

	if err := s.Tags().Set("v1", f); err != nil {
		t.Fatalf("Tags.Set: %v", err)
	}
	tag, err := s.Tag("v1")
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if tag.Writable() {
		t.Fatal("tag snapshot is writable")
	}
	if _, err := tag.WriteText("a", "2"); !errors.Is(err, ErrPermission) {
		t.Fatalf("write tag: %v", err)
	}
	if _, err := tag.Undo(1); !errors.Is(err, ErrPermission) {
		t.Fatalf("undo tag: %v", err)
	}
	b := tag.Batch()
	if err := b.WriteText("a", "2"); err != nil {
		t.Fatalf("staging on tag: %v", err)
	}
	if _, err := b.Commit(""); !errors.Is(err, ErrPermission) {
		t.Fatalf("commit on tag: %v", err)
	}
}

func TestBatchClosedAfterCommit(t *testing.T) {
	s := newTestStore(t)
	b := mainBranch(t, s).Batch()
	if err := b.WriteText("a", "1"); err != nil {
		t.Fatal(err)
	}
	w, err := b.Writer("stream")
	if err != nil {
		t.Fatalf("Writer: %v", err)
	}
	if _, err := b.Commit(""); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := b.Commit(""); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("second Commit: %v", err)
	}
	if err := b.WriteText("b", "2"); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("Write after commit: %v", err)
	}
	if err := b.Remove("a"); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("Remove after commit: %v", err)
	}
	if _, err := b.Writer("c"); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("Writer after commit: %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("writer Close after commit: %v", err)
	}
}

func TestBatchStreamingWriter(t *testing.T) {
	s, cb := newCountingStore(t)
	b := mainBranch(t, s).Batch()

	w, err := b.Writer("logs/out.txt")
	if err != nil {
		t.Fatalf("Writer: %v", err)
	}
	before := cb.count()
	for _, chunk := range []string{"one ", "two ", "three"} {
		if _, err := io.WriteString(w, chunk); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("Len before Close = %d", b.Len())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if cb.count() != before {
		t.Fatal("writer touched the store before commit")
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Fatalf("write after close: %v", err)
	}

	f, err := b.Commit("")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := readString(t, f, "logs/out.txt"); got != "one two three" {
		t.Fatalf("content = %q", got)
	}
}

func TestApplyAtomic(t *testing.T) {
	s := newTestStore(t)
	f := mustWrite(t, mainBranch(t, s), "file", "x")

	_, err := f.Apply(map[string]WriteEntry{
		"good.txt":   {Data: []byte("fine")},
		"file/child": {Data: []byte("bad")},
	}, []string{"file"})
	// Removing "file" first makes "file/child" legal.
	if err != nil {
		t.Fatalf("Apply with remove: %v", err)
	}

	cur := mainBranch(t, s)
	_, err = cur.Apply(map[string]WriteEntry{
		"another.txt":      {Data: []byte("fine")},
		"good.txt/illegal": {Data: []byte("bad")},
	}, nil)
	if !errors.Is(err, ErrNotADirectory) {
		t.Fatalf("expected ErrNotADirectory, got %v", err)
	}
	after := mainBranch(t, s)
	if after.CommitHash() != cur.CommitHash() {
		t.Fatal("failed apply moved the branch")
	}
	mustNotExist(t, after, "another.txt")
}

func TestApplyKeepsExecutableKindLikeWrite(t *testing.T) {
	s := newTestStore(t)
	f, err := mainBranch(t, s).WriteText("run", "v1", WithKind(object.KindExecutable))
	if err != nil {
		t.Fatal(err)
	}

	f, err = f.Apply(map[string]WriteEntry{"run": {Data: []byte("v2")}}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	info, err := f.Stat("run")
	if err != nil || info.Kind != object.KindExecutable {
		t.Fatalf("after Apply without kind: %+v, %v", info, err)
	}

	viaWrite := mustWrite(t, f, "run", "v3")
	if info, _ := viaWrite.Stat("run"); info.Kind != object.KindExecutable {
		t.Fatalf("after Write without kind: %s", info.Kind)
	}

	f, err = viaWrite.Apply(map[string]WriteEntry{"run": {Data: []byte("v4"), KindSet: true}}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if info, _ := f.Stat("run"); info.Kind != object.KindBlob {
		t.Fatalf("after Apply with KindSet: %s", info.Kind)
	}
}
