package vfs

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestRetryWriteConcurrentCounter(t *testing.T) {
	s := newTestStore(t)
	mustWrite(t, mainBranch(t, s), "counter", "0")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := RetryWrite(s, "main", func(f *Fs) (*Fs, error) {
				text, err := f.ReadText("counter")
				if err != nil {
					return nil, err
				}
				n, err := strconv.Atoi(text)
				if err != nil {
					return nil, err
				}
				return f.WriteText("counter", strconv.Itoa(n+1))
			}, WithMaxAttempts(workers+2), WithBackoff(time.Millisecond))
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RetryWrite: %v", err)
	}

	if got := readString(t, mainBranch(t, s), "counter"); got != strconv.Itoa(workers) {
		t.Fatalf("counter = %s, want %d", got, workers)
	}
}

func TestRetryWriteStopsOnOtherErrors(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	boom := errors.New("boom")
	_, err := RetryWrite(s, "main", func(f *Fs) (*Fs, error) {
		calls++
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryWriteGivesUp(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	_, err := RetryWrite(s, "main", func(f *Fs) (*Fs, error) {
		calls++
		return nil, ErrStaleSnapshot
	}, WithMaxAttempts(3))
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryWriteResolvesFreshSnapshot(t *testing.T) {
	s := newTestStore(t)
	stale := mustWrite(t, mainBranch(t, s), "f", "a")
	mustWrite(t, stale, "f", "b")

	first := true
	f, err := RetryWrite(s, "main", func(f *Fs) (*Fs, error) {
		if first {
			first = false
			return stale.WriteText("f", "lost")
		}
		return f.WriteText("f", "won")
	})
	if err != nil {
		t.Fatalf("RetryWrite: %v", err)
	}
	if got := readString(t, f, "f"); got != "won" {
		t.Fatalf("f = %q", got)
	}
}
