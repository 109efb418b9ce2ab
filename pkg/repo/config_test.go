package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Compression != CompressionZstd {
		t.Fatalf("Compression = %q, want %q", cfg.Storage.Compression, CompressionZstd)
	}
	opts, err := cfg.LockOptions()
	if err != nil {
		t.Fatalf("LockOptions: %v", err)
	}
	if opts.Timeout != 30*time.Second {
		t.Fatalf("Timeout = %s", opts.Timeout)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.User = UserConfig{Name: "Ada", Email: "ada@example.com"}
	cfg.Lock.Timeout = "5s"
	cfg.Storage.Compression = CompressionNone
	cfg.Signing.Key = "~/.ssh/id_ed25519"
	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Author() != "Ada <ada@example.com>" {
		t.Errorf("Author = %q", got.Author())
	}
	if got.Storage.Compression != CompressionNone || got.Signing.Key != cfg.Signing.Key {
		t.Errorf("config = %+v", got)
	}
	opts, err := got.LockOptions()
	if err != nil {
		t.Fatalf("LockOptions: %v", err)
	}
	if opts.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", opts.Timeout)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("[user]\nname = \"Grace\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.User.Name != "Grace" || cfg.Storage.Compression != CompressionZstd {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for _, body := range []string{
		"[storage]\ncompression = \"lz77\"\n",
		"[lock]\ntimeout = \"soon\"\n",
		"not toml at all [",
	} {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadConfig(dir); err == nil {
			t.Errorf("LoadConfig(%q) should fail", strings.TrimSpace(body))
		}
	}
}

func TestOpenHonorsCompressionSetting(t *testing.T) {
	r := initRepo(t)
	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	cfg.Storage.Compression = CompressionNone
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	reopened, err := Open(r.Dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	h, err := reopened.PutBlob([]byte("stored plain"))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(r.Dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !strings.HasPrefix(string(raw), "blob ") {
		t.Fatalf("object stored compressed despite compression = none")
	}
}
