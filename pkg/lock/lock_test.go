//go:build unix

package lock

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	l, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	l2, err := Acquire(path, Options{Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	l2.Release()
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	held, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = Acquire(path, Options{Timeout: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire while held = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("gave up before the deadline")
	}
}

func TestWithReleasesOnPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = With(path, Options{}, func() error { panic("boom") })
	}()

	if err := With(path, Options{Timeout: 100 * time.Millisecond}, func() error { return nil }); err != nil {
		t.Fatalf("With after panic: %v", err)
	}
}

func TestWithReturnsFnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	want := errors.New("fn failed")
	if err := With(path, Options{}, func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("With = %v, want %v", err, want)
	}
}

func TestWithSerializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := With(path, Options{}, func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("With: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
}
