// Package config loads client configuration.
//
// Priority (highest to lowest):
//  1. Command line flags that were set explicitly
//  2. Environment variables with FLAME_ prefix (e.g., FLAME_API_BASE_URL)
//  3. The config file (--config, or flame.yaml in . or $HOME/.config/flame)
//  4. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "FLAME"

// DefaultMaxSteps bounds follow-up chains when engine.max_steps is unset.
const DefaultMaxSteps = 32

// Config holds all client configuration.
type Config struct {
	API     APIConfig
	Log     LogConfig
	Journal JournalConfig
	Catalog CatalogConfig
	Engine  EngineConfig
	Auth    AuthConfig
	Metrics MetricsConfig

	// File is the config file that was read, empty when none was found.
	File string
}

// APIConfig selects the backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration // 0 leaves transport defaults in place
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stderr, stdout, or file path
}

// JournalConfig locates the intent journal. An empty path disables it.
type JournalConfig struct {
	Path string
}

// CatalogConfig locates an alternative route catalog. Empty means the
// embedded default.
type CatalogConfig struct {
	Path string
}

// EngineConfig tunes the dispatcher.
type EngineConfig struct {
	MaxSteps int
}

// AuthConfig holds credentials used when login flags are omitted.
type AuthConfig struct {
	Email    string
	Password string
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string
}

// FlagBindings maps config keys to the persistent flag that overrides them.
var FlagBindings = map[string]string{
	"api.base_url": "base-url",
	"journal.path": "journal",
	"catalog.path": "catalog",
	"log.level":    "log-level",
	"metrics.addr": "metrics-addr",
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When set it must exist.
	File string

	// Flags, when non-nil, supplies overrides for the keys in FlagBindings.
	// Flags missing from the set are skipped.
	Flags *pflag.FlagSet

	// SearchPaths replaces the default config file search path.
	SearchPaths []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", "0s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("journal.path", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("engine.max_steps", DefaultMaxSteps)
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("metrics.addr", "")
}

// Load reads configuration from every source.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("flame")
		v.SetConfigType("yaml")
		for _, p := range searchPaths(opts.SearchPaths) {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for key, name := range FlagBindings {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: v.GetString("api.base_url"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Journal: JournalConfig{Path: v.GetString("journal.path")},
		Catalog: CatalogConfig{Path: v.GetString("catalog.path")},
		Engine:  EngineConfig{MaxSteps: v.GetInt("engine.max_steps")},
		Auth: AuthConfig{
			Email:    v.GetString("auth.email"),
			Password: v.GetString("auth.password"),
		},
		Metrics: MetricsConfig{Addr: v.GetString("metrics.addr")},
		File:    v.ConfigFileUsed(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths(override []string) []string {
	if len(override) > 0 {
		return override
	}
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flame"))
	}
	return paths
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q must be console or json", c.Log.Format)
	}
	return nil
}
