// Package refs holds the ref naming rules and the typed audit log shared by
// every storage backend.
package refs

import (
	"errors"
	"fmt"
	"strings"
)

const (
	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"
)

var (
	// ErrCASMismatch is returned by WriteRef/DeleteRef when the ref no longer
	// holds the expected old value.
	ErrCASMismatch = errors.New("ref compare-and-swap mismatch")

	// ErrInvalidName is returned for ref names that cannot be stored.
	ErrInvalidName = errors.New("invalid ref name")
)

// Branch returns the full ref name of a branch.
func Branch(name string) string { return HeadsPrefix + name }

// Tag returns the full ref name of a tag.
func Tag(name string) string { return TagsPrefix + name }

// IsTag reports whether ref lives under refs/tags/.
func IsTag(ref string) bool { return strings.HasPrefix(ref, TagsPrefix) }

// ValidateName checks a short branch or tag name (without the refs/ prefix).
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// ValidateRef checks a full ref name such as "refs/heads/main".
func ValidateRef(ref string) error {
	switch {
	case strings.HasPrefix(ref, HeadsPrefix):
		return ValidateName(strings.TrimPrefix(ref, HeadsPrefix))
	case strings.HasPrefix(ref, TagsPrefix):
		return ValidateName(strings.TrimPrefix(ref, TagsPrefix))
	default:
		return fmt.Errorf("%w: %q is not under refs/heads/ or refs/tags/", ErrInvalidName, ref)
	}
}
