package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ansa-fs/internal/hash"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel       = "ANSAFS_LOG_LEVEL"
	EnvHashAlgorithm  = "ANSAFS_HASH_ALGORITHM"
	EnvWorkers        = "ANSAFS_WORKERS"
	EnvMaxDepth       = "ANSAFS_MAX_DEPTH"
	EnvUpdateInterval = "ANSAFS_UPDATE_INTERVAL"
)

type Config struct {
	IgnoreDirs       []string      `yaml:"ignore_dirs"`
	IgnoreFiles      []string      `yaml:"ignore_files"`
	IgnoreExtensions []string      `yaml:"ignore_extensions"`
	Exclude          []string      `yaml:"exclude"`
	MaxDepth         int           `yaml:"max_depth"`
	HashAlgorithm    string        `yaml:"hash_algorithm"`
	Workers          int           `yaml:"workers"`
	Content          ContentConfig `yaml:"content"`
	Watch            WatchConfig   `yaml:"watch"`
	Log              LogConfig     `yaml:"log"`
}

type ContentConfig struct {
	MaxFileSizeKB int `yaml:"max_file_size_kb"`
}

type WatchConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
	IgnoreInitial  bool          `yaml:"ignore_initial"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		IgnoreDirs: []string{
			".git",
			".svn",
			".hg",
			"node_modules",
			"dist",
			"build",
			"coverage",
			".next",
			".cache",
			"__pycache__",
		},
		IgnoreFiles: []string{
			".DS_Store",
			"Thumbs.db",
		},
		IgnoreExtensions: []string{},
		Exclude:          []string{},
		MaxDepth:         -1,
		HashAlgorithm:    string(hash.MD5),
		Workers:          0,
		Content: ContentConfig{
			MaxFileSizeKB: 1000,
		},
		Watch: WatchConfig{
			UpdateInterval: 100 * time.Millisecond,
			IgnoreInitial:  true,
		},
		Log: LogConfig{
			Level: "error",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys absent from the file
// keep their default values. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	// Initialize slices if nil (for explicit empty keys)
	if cfg.IgnoreDirs == nil {
		cfg.IgnoreDirs = []string{}
	}
	if cfg.IgnoreFiles == nil {
		cfg.IgnoreFiles = []string{}
	}
	if cfg.IgnoreExtensions == nil {
		cfg.IgnoreExtensions = []string{}
	}
	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays ANSAFS_* variables, loading a .env file from the working
// directory first when one exists.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHashAlgorithm)); v != "" {
		cfg.HashAlgorithm = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		cfg.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxDepth)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxDepth, v, err)
		}
		cfg.MaxDepth = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvUpdateInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvUpdateInterval, v, err)
		}
		cfg.Watch.UpdateInterval = d
	}

	return cfg.Validate()
}

func (c *Config) Validate() error {
	if _, err := hash.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return err
	}
	if c.MaxDepth < -1 {
		return fmt.Errorf("max_depth must be -1 (unlimited) or >= 0, got %d", c.MaxDepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Watch.UpdateInterval <= 0 {
		return fmt.Errorf("watch.update_interval must be positive, got %s", c.Watch.UpdateInterval)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "error", "severe":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
