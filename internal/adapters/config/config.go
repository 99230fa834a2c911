// Package config loads tool-level settings from crabby.toml.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.trai.ch/zerr"
)

// Filename is the optional per-project settings file.
const Filename = "crabby.toml"

// CacheDirEnv overrides the shared cache location.
const CacheDirEnv = "CRABBY_CACHE_DIR"

// Config holds tool settings. Everything has a working default; crabby.toml
// only needs the keys it wants to change.
type Config struct {
	// Registry is the package registry base URL.
	Registry string `toml:"registry"`

	// CacheDir is the shared content-addressed cache root.
	CacheDir string `toml:"cache_dir"`

	// Parallelism bounds concurrent tarball fetches.
	Parallelism int `toml:"parallelism"`

	// RetryAttempts is the per-package fetch retry budget.
	RetryAttempts int `toml:"retry_attempts"`

	// IntegrityAlgorithm selects the tarball digest algorithm (sha1 or
	// sha256). Registry metadata that carries an algorithm prefix in its
	// integrity string wins over this setting.
	IntegrityAlgorithm string `toml:"integrity_algorithm"`

	// FetchTimeoutSeconds is the per-attempt network timeout.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
}

// Default returns the compiled-in settings.
func Default() Config {
	cacheDir := os.Getenv(CacheDirEnv)
	if cacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(base, "crabby")
		} else {
			cacheDir = filepath.Join(os.TempDir(), "crabby-cache")
		}
	}
	return Config{
		Registry:            "https://registry.npmjs.org",
		CacheDir:            cacheDir,
		Parallelism:         16,
		RetryAttempts:       3,
		IntegrityAlgorithm:  "sha1",
		FetchTimeoutSeconds: 60,
	}
}

// Load reads crabby.toml from dir, overlaying defaults. A missing file is not
// an error.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted at the project dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, zerr.With(zerr.Wrap(err, "failed to read settings file"), "path", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, zerr.With(zerr.Wrap(err, "failed to parse settings file"), "path", path)
	}

	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if env := os.Getenv(CacheDirEnv); env != "" {
		cfg.CacheDir = env
	}
	return cfg, nil
}

// FetchTimeout returns the per-attempt timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds < 1 {
		return time.Minute
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
