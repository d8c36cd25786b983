// Package config loads docrender settings for the command-line tool.
//
// Settings come from three layers, later layers winning: built-in
// defaults, an optional YAML file (with ${VAR} expansion), then DOCRENDER_*
// environment variables. A .env file in the working directory is applied to
// the environment first without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/porticus-lab/docrender"
)

// Defaults.
const (
	DefaultOutputDir   = docrender.DefaultOutputDir
	DefaultBackend     = "basic"
	DefaultMemoryLimit = ByteSize(512 << 20)
)

// envPrefix prefixes every environment override.
const envPrefix = "DOCRENDER_"

// Config is the tool configuration.
type Config struct {
	OutputDir   string        `yaml:"output_dir"`
	Backend     string        `yaml:"backend"`
	Timeout     time.Duration `yaml:"timeout"`
	MemoryLimit ByteSize      `yaml:"memory_limit"`
	InlineCopy  bool          `yaml:"inline_copy"`

	Chrome Chrome `yaml:"chrome"`
	Basic  Basic  `yaml:"basic"`
}

// Chrome configures the chrome backend.
type Chrome struct {
	Path         string `yaml:"path"`
	NoSandbox    bool   `yaml:"no_sandbox"`
	AutoDownload bool   `yaml:"auto_download"`
	Headless     string `yaml:"headless"`
}

// Basic configures the basic backend.
type Basic struct {
	FontFamily string  `yaml:"font_family"`
	FontSize   float64 `yaml:"font_size"`
	Creator    string  `yaml:"creator"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		Backend:     DefaultBackend,
		MemoryLimit: DefaultMemoryLimit,
	}
}

// Load reads the configuration at path. An empty path skips the file and
// uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	return load(path, ".env", ".env.local")
}

func load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles applies the first of files that exists. godotenv never
// overrides variables already present in the environment.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		return nil
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("OUTPUT_DIR", &c.OutputDir)
	str("BACKEND", &c.Backend)
	str("CHROME_PATH", &c.Chrome.Path)
	boolean("NO_SANDBOX", &c.Chrome.NoSandbox)
	boolean("AUTO_DOWNLOAD", &c.Chrome.AutoDownload)
	boolean("INLINE_COPY", &c.InlineCopy)

	if v, ok := lookup(envPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err))
		} else {
			c.Timeout = d
		}
	}
	if v, ok := lookup(envPrefix + "MEMORY_LIMIT"); ok {
		n, err := ParseByteSize(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMEMORY_LIMIT: %w", envPrefix, err))
		} else {
			c.MemoryLimit = n
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if _, err := docrender.ParseBackendKind(c.Backend); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MemoryLimit < 0 {
		return fmt.Errorf("memory_limit must not be negative, got %d", c.MemoryLimit)
	}
	if c.Basic.FontSize < 0 {
		return fmt.Errorf("basic.font_size must not be negative, got %g", c.Basic.FontSize)
	}
	return nil
}

// BackendKind returns the configured default backend.
func (c *Config) BackendKind() docrender.BackendKind {
	k, err := docrender.ParseBackendKind(c.Backend)
	if err != nil {
		return docrender.BackendBasic
	}
	return k
}

// Limits returns the renderer's default limits.
func (c *Config) Limits() docrender.Limits {
	return docrender.Limits{Timeout: c.Timeout, MemoryLimit: int64(c.MemoryLimit)}
}

// ChromeOptions returns the options for a chrome backend.
func (c *Config) ChromeOptions() []docrender.ChromeOption {
	var opts []docrender.ChromeOption
	if c.Chrome.Path != "" {
		opts = append(opts, docrender.WithChromePath(c.Chrome.Path))
	}
	if c.Chrome.NoSandbox {
		opts = append(opts, docrender.WithNoSandbox())
	}
	if c.Chrome.AutoDownload {
		opts = append(opts, docrender.WithAutoDownload())
	}
	if c.Chrome.Headless != "" {
		opts = append(opts, docrender.WithHeadless(c.Chrome.Headless))
	}
	if c.Timeout > 0 {
		opts = append(opts, docrender.WithTimeout(c.Timeout))
	}
	return opts
}

// BasicOptions returns the options for the basic backend.
func (c *Config) BasicOptions() []docrender.BasicOption {
	opts := []docrender.BasicOption{docrender.WithFont(c.Basic.FontFamily, c.Basic.FontSize)}
	if c.Basic.Creator != "" {
		opts = append(opts, docrender.WithCreator(c.Basic.Creator))
	}
	return opts
}

// ByteSize is a size in bytes. In YAML and the environment it accepts a
// plain integer or a number with a KiB, MiB or GiB suffix.
type ByteSize int64

var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses s as a [ByteSize].
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return ByteSize(n * mult), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = n
	return nil
}
