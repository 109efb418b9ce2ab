package vfs

import (
	"fmt"
	"strings"
)

// cleanPath normalizes a slash-separated path relative to the tree root.
// Leading and trailing slashes are dropped; "" is the root.
func cleanPath(p string) (string, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "", nil
	}
	if strings.ContainsAny(trimmed, "\x00\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		switch seg {
		case "", ".", "..":
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return trimmed, nil
}

// cleanLeafPath is cleanPath for operations that need a non-root path.
func cleanLeafPath(p string) (string, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", fmt.Errorf("%w: root path not allowed", ErrInvalidPath)
	}
	return clean, nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// isWithin reports whether p equals dir or lies below it.
func isWithin(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}
