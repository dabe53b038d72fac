// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dylanclarke890/krystal/lib/codecs"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "KRYSTAL_CONFIG"

// MaxChunkSize bounds pipeline.chunk_size.
const MaxChunkSize = 1 << 30

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for interactive use.
	Development Environment = "development"
	// Staging is for pre-production batch jobs.
	Staging Environment = "staging"
	// Production is for unattended batch jobs.
	Production Environment = "production"
)

// Config is the master configuration for krystal.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Logging configures the CLI logger.
	Logging LoggingConfig `yaml:"logging"`

	// Pipeline configures how pipelines run.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Profiles are named codec chains. Entries in the file are merged
	// over the built-in profiles, replacing any with the same name.
	Profiles map[string]Profile `yaml:"profiles"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Logging  *LoggingConfig  `yaml:"logging,omitempty"`
	Pipeline *PipelineConfig `yaml:"pipeline,omitempty"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is one of auto, text, json. Auto picks text on a terminal
	// and JSON otherwise.
	// Default: auto (development), json (production)
	Format string `yaml:"format"`
}

// PipelineConfig configures how pipelines run.
type PipelineConfig struct {
	// ChunkSize is the number of source bytes per chunk.
	// Default: 65536
	ChunkSize int `yaml:"chunk_size"`

	// ProgressInterval is the minimum time between progress records,
	// as a Go duration. "0s" disables progress logging.
	// Default: 5s
	ProgressInterval string `yaml:"progress_interval"`

	// DefaultProfile is used when compress is given no stages.
	// Default: default
	DefaultProfile string `yaml:"default_profile"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for krystal data.
	Root string `yaml:"root"`

	// Pipelines is the directory searched for pipeline definitions
	// named without a path.
	Pipelines string `yaml:"pipelines"`

	// KeyFile is the default master key file for the seal codec.
	KeyFile string `yaml:"key_file"`

	// Identity is the default age identity file for decompressing
	// archives sealed to recipients.
	Identity string `yaml:"identity"`
}

// Profile is a named codec chain.
type Profile struct {
	// Description is shown by the codecs command.
	Description string `yaml:"description"`

	// ChunkSize overrides pipeline.chunk_size when non-zero.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// Stages is the encoding chain.
	Stages []codecs.Spec `yaml:"stages"`
}

// builtinProfiles returns the profiles every configuration starts with.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"default": {
			Description: "zstd blocks",
			Stages:      []codecs.Spec{{Codec: "zstd"}},
		},
		"fast": {
			Description: "LZ4 blocks",
			Stages:      []codecs.Spec{{Codec: "lz4"}},
		},
		"classic": {
			Description: "LZ77 tokens, Huffman coded",
			Stages:      []codecs.Spec{{Codec: "lz77"}, {Codec: "huffman"}},
		},
		"runs": {
			Description: "run-length pairs, Huffman coded",
			Stages:      []codecs.Spec{{Codec: "rle"}, {Codec: "huffman"}},
		},
		"adaptive": {
			Description: "per-block choice of zstd, LZ4 or stored",
			Stages:      []codecs.Spec{{Codec: "auto"}},
		},
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Pipeline: PipelineConfig{
			ChunkSize:        64 * 1024,
			ProgressInterval: "5s",
			DefaultProfile:   "default",
		},
		Paths: PathsConfig{
			Root:      "${HOME}/.local/share/krystal",
			Pipelines: "${KRYSTAL_ROOT}/pipelines",
		},
		Profiles: builtinProfiles(),
	}
}

// Load loads configuration from the KRYSTAL_CONFIG environment variable.
// There are no fallbacks: if KRYSTAL_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your krystal.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty, then KRYSTAL_CONFIG
// when it is set, and otherwise returns the defaults with variables
// expanded.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}

	if overrides.Pipeline != nil {
		if overrides.Pipeline.ChunkSize != 0 {
			c.Pipeline.ChunkSize = overrides.Pipeline.ChunkSize
		}
		if overrides.Pipeline.ProgressInterval != "" {
			c.Pipeline.ProgressInterval = overrides.Pipeline.ProgressInterval
		}
		if overrides.Pipeline.DefaultProfile != "" {
			c.Pipeline.DefaultProfile = overrides.Pipeline.DefaultProfile
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"KRYSTAL_ROOT": "",
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["KRYSTAL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Pipelines = expandVars(c.Paths.Pipelines, vars)
	c.Paths.KeyFile = expandVars(c.Paths.KeyFile, vars)
	c.Paths.Identity = expandVars(c.Paths.Identity, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars take precedence over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	if c.Pipeline.ChunkSize < 1 || c.Pipeline.ChunkSize > MaxChunkSize {
		errs = append(errs, fmt.Errorf("pipeline.chunk_size %d outside [1, %d]", c.Pipeline.ChunkSize, MaxChunkSize))
	}
	if interval, err := time.ParseDuration(c.Pipeline.ProgressInterval); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.progress_interval: %w", err))
	} else if interval < 0 {
		errs = append(errs, fmt.Errorf("pipeline.progress_interval must not be negative"))
	}
	if _, ok := c.Profiles[c.Pipeline.DefaultProfile]; !ok {
		errs = append(errs, fmt.Errorf("pipeline.default_profile %q is not a defined profile", c.Pipeline.DefaultProfile))
	}

	for _, name := range c.ProfileNames() {
		profile := c.Profiles[name]
		if len(profile.Stages) == 0 {
			errs = append(errs, fmt.Errorf("profiles.%s: no stages", name))
		}
		if profile.ChunkSize < 0 || profile.ChunkSize > MaxChunkSize {
			errs = append(errs, fmt.Errorf("profiles.%s.chunk_size %d outside [0, %d]", name, profile.ChunkSize, MaxChunkSize))
		}
		if _, err := codecs.ResolveAll(profile.Stages); err != nil {
			errs = append(errs, fmt.Errorf("profiles.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ProfileNames returns the defined profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Profile returns the named profile. An empty name selects
// pipeline.default_profile.
func (c *Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = c.Pipeline.DefaultProfile
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (defined: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	return profile, nil
}

// ChunkSizeFor returns the chunk size to run profile with.
func (c *Config) ChunkSizeFor(profile Profile) int {
	if profile.ChunkSize > 0 {
		return profile.ChunkSize
	}
	return c.Pipeline.ChunkSize
}

// ProgressInterval returns pipeline.progress_interval. Zero disables
// progress logging, which the pipeline expresses as a negative
// interval. Unparseable values fall back to five seconds; Validate
// reports them.
func (c *Config) ProgressInterval() time.Duration {
	interval, err := time.ParseDuration(c.Pipeline.ProgressInterval)
	if err != nil {
		return 5 * time.Second
	}
	if interval == 0 {
		return -1
	}
	return interval
}

// LogLevel returns logging.level as a slog level. Unknown values map
// to info; Validate reports them.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// PipelinePath resolves a pipeline reference. References containing a
// path separator or ending in .json or .jsonc are file paths; anything
// else names a file in paths.pipelines.
func (c *Config) PipelinePath(reference string) string {
	if strings.ContainsRune(reference, filepath.Separator) ||
		strings.HasSuffix(reference, ".json") || strings.HasSuffix(reference, ".jsonc") {
		return reference
	}
	return filepath.Join(c.Paths.Pipelines, reference+".jsonc")
}
