package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for pycc.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Thresholds used to highlight functions in table output
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls discovery and the worker pool.
type AnalysisConfig struct {
	Workers    int      `koanf:"workers" toml:"workers"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	// OnError is "abort" or "isolate".
	OnError            string `koanf:"on_error" toml:"on_error"`
	Decorated          bool   `koanf:"decorated" toml:"decorated"`
	RejectSyntaxErrors bool   `koanf:"reject_syntax_errors" toml:"reject_syntax_errors"`
	FollowSymlinks     bool   `koanf:"follow_symlinks" toml:"follow_symlinks"`
	// MaxFileSize skips larger files during discovery. 0 disables the limit.
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"`
}

// ThresholdConfig defines metric thresholds.
type ThresholdConfig struct {
	Cyclomatic int `koanf:"cyclomatic" toml:"cyclomatic"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, yaml, toon, markdown, table
	Color  bool   `koanf:"color" toml:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Workers:        4,
			Extensions:     []string{".py"},
			OnError:        "abort",
			FollowSymlinks: true,
		},
		Thresholds: ThresholdConfig{
			Cyclomatic: 10,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".hg",
				".pycc",
				"__pycache__",
				".mypy_cache",
				".tox",
			},
			Gitignore: false,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".pycc/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

var validFormats = map[string]bool{
	"text": true, "json": true, "yaml": true, "toon": true, "markdown": true, "md": true, "table": true,
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Workers < 1 {
		errs = append(errs, fmt.Errorf("analysis.workers must be at least 1 (got %d)", c.Analysis.Workers))
	}
	if len(c.Analysis.Extensions) == 0 {
		errs = append(errs, errors.New("analysis.extensions must not be empty"))
	}
	for _, ext := range c.Analysis.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("analysis.extensions entry %q must start with a dot", ext))
		}
	}
	switch strings.ToLower(c.Analysis.OnError) {
	case "abort", "isolate":
	default:
		errs = append(errs, fmt.Errorf("analysis.on_error must be abort or isolate (got %q)", c.Analysis.OnError))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_file_size must not be negative (got %d)", c.Analysis.MaxFileSize))
	}
	if c.Thresholds.Cyclomatic < 1 {
		errs = append(errs, fmt.Errorf("thresholds.cyclomatic must be at least 1 (got %d)", c.Thresholds.Cyclomatic))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required when cache is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative (got %d)", c.Cache.TTL))
	}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		errs = append(errs, fmt.Errorf("output.format %q is not supported", c.Output.Format))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadResult is a loaded config and the file it came from.
type LoadResult struct {
	Config *Config
	// Source is empty when no config file was found.
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDir searches dir instead of the working directory.
func WithSearchDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// Standard config file names to search for
var configNames = []string{
	"pycc.toml",
	"pycc.yaml",
	"pycc.yml",
	"pycc.json",
	".pycc.toml",
	".pycc.yaml",
	".pycc.yml",
	".pycc.json",
}

// LoadConfig loads an explicit config file, or the first one found in the search
// locations, or the defaults when none exists.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range []string{o.dir, filepath.Join(o.dir, ".pycc")} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	result, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return result.Config
}

// HasExtension reports whether path has one of the configured source extensions.
func (c *Config) HasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range c.Analysis.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
