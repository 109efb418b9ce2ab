package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/snapfs/pkg/lock"
)

// ConfigFile is the name of the store configuration file.
const ConfigFile = "config.toml"

const (
	CompressionZstd = "zstd"
	CompressionNone = "none"
)

// Config stores store-local settings.
type Config struct {
	User    UserConfig    `toml:"user"`
	Lock    LockConfig    `toml:"lock"`
	Storage StorageConfig `toml:"storage"`
	Signing SigningConfig `toml:"signing"`
}

// UserConfig is the default commit author.
type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// LockConfig holds durations as Go duration strings ("30s", "10ms").
type LockConfig struct {
	Timeout      string `toml:"timeout"`
	PollInterval string `toml:"poll_interval"`
}

type StorageConfig struct {
	Compression string `toml:"compression"`
}

// SigningConfig names an SSH private key used to sign commits. Empty
// disables signing.
type SigningConfig struct {
	Key string `toml:"key"`
}

// DefaultConfig returns the configuration written by Init.
func DefaultConfig() *Config {
	return &Config{
		User: UserConfig{Name: "snapfs", Email: "snapfs@localhost"},
		Lock: LockConfig{
			Timeout:      lock.DefaultTimeout.String(),
			PollInterval: lock.DefaultPollInterval.String(),
		},
		Storage: StorageConfig{Compression: CompressionZstd},
	}
}

// Author formats the configured user as "Name <email>".
func (c *Config) Author() string {
	name := strings.TrimSpace(c.User.Name)
	if name == "" {
		name = "snapfs"
	}
	email := strings.TrimSpace(c.User.Email)
	if email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// LockOptions parses the lock durations.
func (c *Config) LockOptions() (lock.Options, error) {
	var opts lock.Options
	var err error
	if opts.Timeout, err = parseDuration(c.Lock.Timeout); err != nil {
		return lock.Options{}, fmt.Errorf("lock.timeout: %w", err)
	}
	if opts.PollInterval, err = parseDuration(c.Lock.PollInterval); err != nil {
		return lock.Options{}, fmt.Errorf("lock.poll_interval: %w", err)
	}
	return opts, nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func (c *Config) validate() error {
	switch c.Storage.Compression {
	case "", CompressionZstd, CompressionNone:
	default:
		return fmt.Errorf("storage.compression: unknown value %q", c.Storage.Compression)
	}
	_, err := c.LockOptions()
	return err
}

// LoadConfig reads dir/config.toml. A missing file returns DefaultConfig.
func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// SaveConfig atomically writes dir/config.toml.
func SaveConfig(dir string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write config: mkdir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, ConfigFile), buf.Bytes(), ".config-tmp-*"); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ReadConfig reads the store's config.toml.
func (r *Repo) ReadConfig() (*Config, error) {
	return LoadConfig(r.Dir)
}

// WriteConfig replaces the store's config.toml. Compression changes apply
// to stores opened afterwards.
func (r *Repo) WriteConfig(cfg *Config) error {
	return SaveConfig(r.Dir, cfg)
}
