package vfs

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

func TestTwoFileScenario(t *testing.T) {
	s := newTestStore(t)
	base := mainBranch(t, s)
	if base.CommitHash() != "" {
		t.Fatalf("fresh branch has commit %s", base.CommitHash())
	}

	b := base.Batch()
	if err := b.WriteText("a.txt", "hello"); err != nil {
		t.Fatalf("WriteText a: %v", err)
	}
	if err := b.WriteText("b.txt", "world"); err != nil {
		t.Fatalf("WriteText b: %v", err)
	}
	f, err := b.Commit("")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if got := readString(t, f, "a.txt"); got != "hello" {
		t.Fatalf("a.txt = %q", got)
	}
	if got := readString(t, f, "b.txt"); got != "world" {
		t.Fatalf("b.txt = %q", got)
	}
	log, err := f.Log(0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("expected exactly one commit, got %d", len(log))
	}
	parent, err := f.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if parent != nil {
		t.Fatalf("root commit has parent %s", parent.CommitHash())
	}
	if f.Message() != "Batch: 2 write(s), 0 remove(s)" {
		t.Fatalf("message = %q", f.Message())
	}

	// A second batch on top has the first commit as its parent.
	b = f.Batch()
	if err := b.WriteText("a.txt", "again"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	g, err := b.Commit("second")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	parent, err = g.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if parent == nil || parent.CommitHash() != f.CommitHash() {
		t.Fatalf("parent = %v, want %s", parent, f.CommitHash())
	}
}

func TestEmptyBatchStillCommits(t *testing.T) {
	s := newTestStore(t)
	f := mustWrite(t, mainBranch(t, s), "x", "1")

	g, err := f.Batch().Commit("checkpoint")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if g.CommitHash() == f.CommitHash() {
		t.Fatal("expected a new commit")
	}
	if g.TreeHash() != f.TreeHash() {
		t.Fatalf("tree changed: %s -> %s", f.TreeHash(), g.TreeHash())
	}
	parent, err := g.Parent()
	if err != nil || parent == nil || parent.CommitHash() != f.CommitHash() {
		t.Fatalf("parent = %v, %v", parent, err)
	}

	// An empty batch on an empty branch creates a root commit over the
	// empty tree.
	e, err := s.Branch("fresh")
	if err != nil {
		t.Fatalf("Branch: %v", err)
	}
	e, err = e.Batch().Commit("init")
	if err != nil {
		t.Fatalf("Commit on empty branch: %v", err)
	}
	if e.CommitHash() == "" || e.TreeHash() == "" {
		t.Fatal("expected commit and tree")
	}
	names, err := e.Ls("")
	if err != nil || len(names) != 0 {
		t.Fatalf("Ls = %v, %v", names, err)
	}
}

func TestLastOperationWins(t *testing.T) {
	s := newTestStore(t)
	f := mustWrite(t, mainBranch(t, s), "f", "old")

	b := f.Batch()
	if err := b.WriteText("f", "x"); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove("f"); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
	g, err := b.Commit("")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mustNotExist(t, g, "f")
	if g.Message() != "Remove f" {
		t.Fatalf("message = %q", g.Message())
	}

	b = g.Batch()
	if err := b.Remove("f"); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteText("f", "y"); err != nil {
		t.Fatal(err)
	}
	h, err := b.Commit("")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := readString(t, h, "f"); got != "y" {
		t.Fatalf("f = %q, want y", got)
	}
	if h.Message() != "Write f" {
		t.Fatalf("message = %q", h.Message())
	}
}

func TestStaleSnapshotRejected(t *testing.T) {
	s, cb := newCountingStore(t)
	base := mustWrite(t, mainBranch(t, s), "f", "base")
	s1, s2 := base, base

	c1, err := s1.WriteText("f", "one")
	if err != nil {
		t.Fatalf("write via s1: %v", err)
	}

	before := cb.count()
	if _, err := s2.WriteText("f", "two"); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
	if cb.count() != before {
		t.Fatalf("stale write created %d object(s)", cb.count()-before)
	}

	fresh := mainBranch(t, s)
	if fresh.CommitHash() != c1.CommitHash() {
		t.Fatalf("branch at %s, want %s", fresh.CommitHash(), c1.CommitHash())
	}
	c2, err := fresh.WriteText("f", "two")
	if err != nil {
		t.Fatalf("retry on fresh snapshot: %v", err)
	}
	if got := readString(t, c2, "f"); got != "two" {
		t.Fatalf("f = %q", got)
	}
}

func TestStaleSnapshotOnEmptyBranch(t *testing.T) {
	s := newTestStore(t)
	a := mainBranch(t, s)
	b := mainBranch(t, s)
	if _, err := a.WriteText("x", "a"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := b.WriteText("x", "b"); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
}

func TestConcurrentWritersOneWins(t *testing.T) {
	s := newTestStore(t)
	base := mustWrite(t, mainBranch(t, s), "seed", "0")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wins := make(chan *Fs, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := base.WriteText(fmt.Sprintf("w%d", i), strconv.Itoa(i))
			if err != nil {
				errs <- err
				return
			}
			wins <- f
		}()
	}
	wg.Wait()
	close(errs)
	close(wins)

	if len(wins) != 1 {
		t.Fatalf("winners = %d, want 1", len(wins))
	}
	for err := range errs {
		if !errors.Is(err, ErrStaleSnapshot) {
			t.Fatalf("loser error = %v, want ErrStaleSnapshot", err)
		}
	}
	winner := <-wins
	if mainBranch(t, s).CommitHash() != winner.CommitHash() {
		t.Fatal("branch does not point at the winning commit")
	}
}

func TestPublishAppendsAudit(t *testing.T) {
	s := newTestStore(t)
	f := mustWrite(t, mainBranch(t, s), "a", "1")
	g := mustWrite(t, f, "a", "2")

	entries, err := g.Reflog()
	if err != nil {
		t.Fatalf("Reflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	newest := entries[0]
	if newest.Kind != refs.KindWrite || newest.Old != f.CommitHash() || newest.New != g.CommitHash() {
		t.Fatalf("newest entry = %+v", newest)
	}
	if newest.Message != "Write a" {
		t.Fatalf("message = %q", newest.Message)
	}
	if entries[1].Old != "" {
		t.Fatalf("first entry old = %q, want empty", entries[1].Old)
	}
}

func TestAuditFailureReportedAfterRefUpdate(t *testing.T) {
	s, cb := newCountingStore(t)
	f := mustWrite(t, mainBranch(t, s), "a", "1")

	cb.failAudit = true
	_, err := f.WriteText("a", "2")
	if !errors.Is(err, ErrAuditAppend) {
		t.Fatalf("expected ErrAuditAppend, got %v", err)
	}
	var auditErr *AuditError
	if !errors.As(err, &auditErr) {
		t.Fatalf("expected *AuditError, got %T", err)
	}
	cur := mainBranch(t, s)
	if cur.CommitHash() != auditErr.NewHash {
		t.Fatalf("branch at %s, want %s", cur.CommitHash(), auditErr.NewHash)
	}
	if got := readString(t, cur, "a"); got != "2" {
		t.Fatalf("a = %q", got)
	}
}

func TestCommitMetadata(t *testing.T) {
	var signed []byte
	s := newTestStore(t,
		WithAuthor("Ada <ada@example.com>"),
		WithSigner(func(payload []byte) (string, error) {
			signed = payload
			return "sig", nil
		}),
	)
	f, err := mainBranch(t, s).WriteText("a", "1", WithMessage("first"))
	if err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if f.Author() != "Ada <ada@example.com>" {
		t.Fatalf("author = %q", f.Author())
	}
	if f.Message() != "first" {
		t.Fatalf("message = %q", f.Message())
	}
	if f.Time().IsZero() {
		t.Fatal("zero commit time")
	}
	if len(signed) == 0 {
		t.Fatal("signer was not called")
	}
	c, err := s.backend.ReadCommit(f.CommitHash())
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Signature != "sig" {
		t.Fatalf("signature = %q", c.Signature)
	}
}

func TestWriteCommitUnknownParent(t *testing.T) {
	s := newTestStore(t)
	tree, err := s.backend.PutTree(nil)
	if err != nil {
		t.Fatalf("PutTree: %v", err)
	}
	missing := testHashFor(t, s)
	if _, _, err := s.writeCommit(tree, missing, "orphan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// testHashFor returns a well-formed hash that names no object.
func testHashFor(t *testing.T, s *Store) object.Hash {
	t.Helper()
	h, err := s.backend.PutBlob([]byte("sample"))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	b := []byte(h)
	if b[0] == 'f' {
		b[0] = '0'
	} else {
		b[0] = 'f'
	}
	return object.Hash(b)
}
