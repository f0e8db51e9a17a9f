package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/openlang/packsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".packsync", "config.json")
	DefaultMirrorDir  = "resource_pack"
)

const (
	DefaultWorkers    = 4
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultInterval   = 30 * time.Minute
)

type Config struct {
	// BaseURL is the upstream index page serving the pack archives.
	BaseURL string `json:"base_url"`

	// MirrorDir is the local directory holding mirrored archives.
	MirrorDir string `json:"mirror_dir"`

	// Workers bounds concurrent downloads within one run.
	Workers int `json:"workers"`

	// Timeout bounds a single fetch, including retries of one attempt.
	Timeout time.Duration `json:"timeout"`

	// MaxRetries is the retry budget for transient fetch failures.
	MaxRetries int `json:"max_retries"`

	// PruneStale removes local files whose upstream entry disappeared.
	PruneStale bool `json:"prune_stale"`

	// Interval between runs in daemon mode.
	Interval time.Duration `json:"interval"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base url missing")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid base url %q", c.BaseURL)
	}
	if c.MirrorDir == "" {
		return errors.New("config: mirror dir missing")
	}

	resolved, err := utils.ResolvePath(c.MirrorDir)
	if err != nil {
		return fmt.Errorf("config: resolve mirror dir: %w", err)
	}
	c.MirrorDir = resolved

	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}
