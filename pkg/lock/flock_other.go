//go:build !unix

package lock

// Supported reports whether a cross-process primitive is available. Without
// one the lock is a no-op and only the ref compare-and-swap protects writers
// in other processes.
const Supported = false

func tryLock(string) (func() error, bool, error) {
	return func() error { return nil }, false, nil
}
