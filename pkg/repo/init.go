package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/refs"
)

// DefaultBranch is the branch HEAD names in a fresh store.
const DefaultBranch = "main"

// Init creates a new store at path: HEAD, objects/, refs/heads/, refs/tags/
// and a default config.toml. Returns an error if a store already exists.
func Init(path string) (*Repo, error) {
	if _, err := os.Stat(filepath.Join(path, "HEAD")); err == nil {
		return nil, fmt.Errorf("init: store already exists at %s", path)
	}

	dirs := []string{
		filepath.Join(path, "objects"),
		filepath.Join(path, "refs", "heads"),
		filepath.Join(path, "refs", "tags"),
		filepath.Join(path, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	headPath := filepath.Join(path, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: "+refs.Branch(DefaultBranch)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return Open(path)
}

// Open opens an existing store at path. Compression of new objects follows
// the store's config.toml.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	if info, err := os.Stat(filepath.Join(abs, "objects")); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open: %s is not a snapfs store", abs)
	}

	cfg, err := LoadConfig(abs)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	return &Repo{
		Dir:   abs,
		Store: object.NewStore(abs, object.WithCompression(cfg.Storage.Compression != CompressionNone)),
	}, nil
}

// Head reads HEAD and returns the full ref name it points at
// (e.g. "refs/heads/main").
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "ref: ") {
		return "", fmt.Errorf("head: unsupported detached HEAD %q", content)
	}
	return strings.TrimPrefix(content, "ref: "), nil
}

// SetHead points HEAD at ref.
func (r *Repo) SetHead(ref string) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return writeFileAtomic(filepath.Join(r.Dir, "HEAD"), []byte("ref: "+ref+"\n"), ".HEAD-tmp-*")
}

func writeFileAtomic(dest string, data []byte, pattern string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), pattern)
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
