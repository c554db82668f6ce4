package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file
const FileName = "pupper.yml"

// Config represents the pupper.yml configuration
type Config struct {
	// Directory holding the .pupper sources
	SrcDir string `yaml:"src,omitempty"`

	// Directory the compiled modules are written to
	OutDir string `yaml:"out,omitempty"`

	// Component rendered by the dev server, relative to SrcDir
	Entry string `yaml:"entry,omitempty"`

	Compile *CompileConfig `yaml:"compile,omitempty"`
	Cache   *CacheConfig   `yaml:"cache,omitempty"`
	Dev     *DevConfig     `yaml:"dev,omitempty"`
}

// CompileConfig contains compiler options
type CompileConfig struct {
	// Whether to compile with debug instrumentation
	Debug bool `yaml:"debug,omitempty"`

	// Bundle the component stylesheets are collected into, relative to OutDir
	Styles string `yaml:"styles,omitempty"`

	// Locals used when a template without components is rendered
	Locals map[string]any `yaml:"locals,omitempty"`
}

// CacheConfig contains compile cache options
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir,omitempty"`
	MaxSize int64         `yaml:"maxSize,omitempty"`
	MaxAge  time.Duration `yaml:"maxAge,omitempty"`
}

// DevConfig contains development server configuration
type DevConfig struct {
	Port int    `yaml:"port,omitempty"`
	Host string `yaml:"host,omitempty"`

	// Debounce applied to file system events
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load loads configuration from pupper.yml in projectPath
func Load(projectPath string) (*Config, error) {
	configPath := filepath.Join(projectPath, FileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save saves configuration to pupper.yml in projectPath
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectPath, FileName), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SrcDir: "src",
		OutDir: "dist",
		Entry:  "app.pupper",
		Compile: &CompileConfig{
			Styles: "styles.css",
		},
		Cache: &CacheConfig{
			Enabled: true,
			MaxSize: 64 << 20,
			MaxAge:  7 * 24 * time.Hour,
		},
		Dev: &DevConfig{
			Port:     5173,
			Host:     "localhost",
			Debounce: 100 * time.Millisecond,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.SrcDir == "" {
		config.SrcDir = defaults.SrcDir
	}
	if config.OutDir == "" {
		config.OutDir = defaults.OutDir
	}
	if config.Entry == "" {
		config.Entry = defaults.Entry
	}

	if config.Compile == nil {
		config.Compile = defaults.Compile
	} else if config.Compile.Styles == "" {
		config.Compile.Styles = defaults.Compile.Styles
	}

	// a missing cache section keeps the cache on
	if config.Cache == nil {
		config.Cache = defaults.Cache
	} else {
		if config.Cache.MaxSize == 0 {
			config.Cache.MaxSize = defaults.Cache.MaxSize
		}
		if config.Cache.MaxAge == 0 {
			config.Cache.MaxAge = defaults.Cache.MaxAge
		}
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
		if config.Dev.Debounce == 0 {
			config.Dev.Debounce = defaults.Dev.Debounce
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Dev != nil && (c.Dev.Port < 0 || c.Dev.Port > 65535) {
		return fmt.Errorf("invalid dev port %d", c.Dev.Port)
	}
	if filepath.Clean(c.SrcDir) == filepath.Clean(c.OutDir) {
		return fmt.Errorf("src and out must be different directories, both are %q", c.SrcDir)
	}
	if filepath.IsAbs(c.Compile.Styles) {
		return fmt.Errorf("styles must be relative to out, got %q", c.Compile.Styles)
	}
	return nil
}

// EntryPath returns the path of the entry component
func (c *Config) EntryPath() string {
	return filepath.Join(c.SrcDir, c.Entry)
}
