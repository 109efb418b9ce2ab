package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/snapfs/pkg/boltstore"
	"github.com/odvcencio/snapfs/pkg/gitstore"
	"github.com/odvcencio/snapfs/pkg/object"
	"github.com/odvcencio/snapfs/pkg/repo"
	"github.com/odvcencio/snapfs/pkg/vfs"
)

const (
	backendNative = "native"
	backendGit    = "git"
	backendBolt   = "bolt"

	// boltFile is the database file of a bolt store, relative to --store.
	boltFile = "snapfs.db"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	dir     string
	backend string
	branch  string
	author  string
	verbose int
	logger  *slog.Logger
}

func (g *globalOptions) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}

// openBackend opens the store directory with the selected backend.
func (g *globalOptions) openBackend() (vfs.Backend, error) {
	switch g.backend {
	case backendNative, "":
		return repo.Open(g.dir)
	case backendGit:
		return gitstore.Open(g.dir)
	case backendBolt:
		return boltstore.Open(filepath.Join(g.dir, boltFile))
	default:
		return nil, fmt.Errorf("unknown backend %q (want native, git or bolt)", g.backend)
	}
}

// initBackend creates a new store directory with the selected backend.
func (g *globalOptions) initBackend() (vfs.Backend, error) {
	switch g.backend {
	case backendNative, "":
		return repo.Init(g.dir)
	case backendGit:
		s, err := gitstore.Init(g.dir)
		if err != nil {
			return nil, err
		}
		if err := repo.SaveConfig(g.dir, repo.DefaultConfig()); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case backendBolt:
		s, err := boltstore.Open(filepath.Join(g.dir, boltFile))
		if err != nil {
			return nil, err
		}
		if err := repo.SaveConfig(g.dir, repo.DefaultConfig()); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want native, git or bolt)", g.backend)
	}
}

// open returns a store configured from config.toml and the flags. The
// caller closes it.
func (g *globalOptions) open() (*vfs.Store, error) {
	cfg, err := repo.LoadConfig(g.dir)
	if err != nil {
		return nil, err
	}
	lockOpts, err := cfg.LockOptions()
	if err != nil {
		return nil, err
	}
	author := cfg.Author()
	if strings.TrimSpace(g.author) != "" {
		author = strings.TrimSpace(g.author)
	}
	opts := []vfs.Option{
		vfs.WithAuthor(author),
		vfs.WithLockOptions(lockOpts),
		vfs.WithLogger(g.log()),
	}
	if strings.TrimSpace(cfg.Signing.Key) != "" {
		signer, keyPath, err := newSSHCommitSigner(cfg.Signing.Key)
		if err != nil {
			return nil, err
		}
		g.log().Debug("signing commits", "key", keyPath)
		opts = append(opts, vfs.WithSigner(signer))
	}

	b, err := g.openBackend()
	if err != nil {
		return nil, err
	}
	return vfs.Open(b, opts...), nil
}

// current returns the --branch snapshot, or the current branch.
func (g *globalOptions) current(s *vfs.Store) (*vfs.Fs, error) {
	if g.branch != "" {
		return s.Branch(g.branch)
	}
	return s.Head()
}

// resolveRev resolves a branch, tag or commit hash, optionally followed by
// "~N" to step back N commits. An empty rev is the current branch.
func (g *globalOptions) resolveRev(s *vfs.Store, rev string) (*vfs.Fs, error) {
	rev = strings.TrimSpace(rev)
	base, steps := rev, 0
	if i := strings.LastIndex(rev, "~"); i >= 0 {
		n := 1
		if tail := rev[i+1:]; tail != "" {
			var err error
			if n, err = strconv.Atoi(tail); err != nil || n < 0 {
				return nil, fmt.Errorf("invalid revision %q", rev)
			}
		}
		base, steps = rev[:i], n
	}

	var (
		f   *vfs.Fs
		err error
	)
	switch {
	case base == "" || base == "HEAD":
		f, err = g.current(s)
	default:
		f, err = resolveName(s, base)
	}
	if err != nil {
		return nil, err
	}
	if steps == 0 {
		return f, nil
	}
	return f.Back(steps)
}

func resolveName(s *vfs.Store, name string) (*vfs.Fs, error) {
	if ok, err := s.Branches().Has(name); err == nil && ok {
		return s.Branch(name)
	}
	if ok, err := s.Tags().Has(name); err == nil && ok {
		return s.Tag(name)
	}
	h := object.Hash(name)
	if object.ValidHash(h) {
		return s.At(h)
	}
	return nil, fmt.Errorf("unknown revision %q: %w", name, vfs.ErrNotFound)
}

// isNotFound reports whether err means a missing path or ref.
func isNotFound(err error) bool {
	return errors.Is(err, vfs.ErrNotFound)
}

// branchName returns --branch or the current branch name.
func (g *globalOptions) branchName(s *vfs.Store) (string, error) {
	if g.branch != "" {
		return g.branch, nil
	}
	return s.Branches().Current()
}

// update runs fn against the branch, retrying on stale snapshots.
func (g *globalOptions) update(s *vfs.Store, fn func(*vfs.Fs) (*vfs.Fs, error)) (*vfs.Fs, error) {
	name, err := g.branchName(s)
	if err != nil {
		return nil, err
	}
	return vfs.RetryWrite(s, name, fn, vfs.WithBackoff(10*time.Millisecond))
}
