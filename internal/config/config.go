// Package config loads parsegraph settings.
//
// Settings are resolved in three layers, later ones winning:
//
//  1. Built-in defaults ([Default])
//  2. The TOML file at [Path] (or the --config flag)
//  3. Environment variables PARSEGRAPH_SERVER and PARSEGRAPH_TIMEOUT
//
// Command-line flags are applied on top by the CLI.
//
// # File Format
//
//	server       = "http://localhost:7071"
//	timeout      = "30s"
//	retries      = 4
//	retry_delay  = "1s"
//	cache_size   = 20
//	cache        = true
//	history_size = 50
//	listen       = "127.0.0.1:8080"
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/parsegraph/pkg/analysis"
	"github.com/matzehuels/parsegraph/pkg/cache"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/httputil"
	"github.com/matzehuels/parsegraph/pkg/lifecycle"
)

// AppName names the config and cache directories.
const AppName = "parsegraph"

// Environment overrides.
const (
	EnvServer  = "PARSEGRAPH_SERVER"
	EnvTimeout = "PARSEGRAPH_TIMEOUT"
)

// DefaultListen is the address of the local host started by "serve".
const DefaultListen = "127.0.0.1:8080"

// Duration is a time.Duration written as a string ("30s", "1m30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds every user-facing setting.
type Config struct {
	Server      string   `toml:"server"`
	Timeout     Duration `toml:"timeout"`
	Retries     int      `toml:"retries"`     // total attempts per analysis
	RetryDelay  Duration `toml:"retry_delay"` // linear backoff base
	CacheSize   int      `toml:"cache_size"`
	Cache       bool     `toml:"cache"`
	HistorySize int      `toml:"history_size"`
	Listen      string   `toml:"listen"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server:      analysis.DefaultBaseURL,
		Timeout:     Duration{httputil.DefaultTimeout},
		Retries:     httputil.DefaultAttempts,
		RetryDelay:  Duration{httputil.DefaultRetryDelay},
		CacheSize:   cache.DefaultSize,
		Cache:       true,
		HistorySize: lifecycle.DefaultHistorySize,
		Listen:      DefaultListen,
	}
}

// Load resolves the configuration. An empty path means [Path]; a missing
// file is only an error when path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if p, err := Path(); err == nil {
			path = p
		}
	}

	if path != "" {
		err := cfg.decodeFile(path)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return perrors.New(perrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(names, ", "))
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServer); ok && v != "" {
		c.Server = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "%s", EnvTimeout)
		}
		c.Timeout = Duration{d}
	}
	return nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	if err := perrors.ValidateURL(c.Server); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "server")
	}
	switch {
	case c.Timeout.Duration <= 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "timeout must be positive, got %s", c.Timeout)
	case c.Retries < 1:
		return perrors.New(perrors.ErrCodeInvalidConfig, "retries must be at least 1, got %d", c.Retries)
	case c.RetryDelay.Duration < 0:
		return perrors.New(perrors.ErrCodeInvalidConfig, "retry_delay cannot be negative, got %s", c.RetryDelay)
	case c.CacheSize < 1:
		return perrors.New(perrors.ErrCodeInvalidConfig, "cache_size must be at least 1, got %d", c.CacheSize)
	case c.HistorySize < 1:
		return perrors.New(perrors.ErrCodeInvalidConfig, "history_size must be at least 1, got %d", c.HistorySize)
	case c.Listen == "":
		return perrors.New(perrors.ErrCodeInvalidConfig, "listen address cannot be empty")
	}
	return nil
}

// AnalysisOptions builds the options for an [analysis.Service].
func (c Config) AnalysisOptions(logger *log.Logger) analysis.Options {
	return analysis.Options{
		BaseURL:     c.Server,
		Timeout:     c.Timeout.Duration,
		Attempts:    c.Retries,
		RetryDelay:  c.RetryDelay.Duration,
		CacheSize:   c.CacheSize,
		NoCache:     !c.Cache,
		HistorySize: c.HistorySize,
		Logger:      logger,
	}
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Path returns the config file location using the XDG standard
// (~/.config/parsegraph/config.toml).
func Path() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the cache directory using the XDG standard
// (~/.cache/parsegraph/).
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}
