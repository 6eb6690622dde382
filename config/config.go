// Package config loads the pipeline settings from built-in defaults, an
// optional YAML file and THYROID_* environment variables, in that order.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/thyroidml/artifact"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "THYROID_CONFIG"

// Config holds every setting of a pipeline run.
type Config struct {
	DataPath    string `yaml:"data_path"`
	LogLevel    string `yaml:"log_level"`
	MetricsFile string `yaml:"metrics_file"` // empty disables the metrics text file

	Clean  CleanConfig  `yaml:"clean"`
	Split  SplitConfig  `yaml:"split"`
	Select SelectConfig `yaml:"select"`
	Forest ForestConfig `yaml:"forest"`
	Store  StoreConfig  `yaml:"store"`

	// BalanceSeed seeds the random oversampler.
	BalanceSeed int64 `yaml:"balance_seed"`
}

// CleanConfig configures the Cleaner.
type CleanConfig struct {
	MaxMissing int `yaml:"max_missing"`
}

// SplitConfig configures the train/test split.
type SplitConfig struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

// SelectConfig configures the feature selector.
type SelectConfig struct {
	K int `yaml:"k"`
}

// ForestConfig configures the random forest.
type ForestConfig struct {
	NEstimators int    `yaml:"n_estimators"`
	MaxDepth    int    `yaml:"max_depth"`
	MaxFeatures string `yaml:"max_features"`
	Seed        int64  `yaml:"seed"`
	NJobs       int    `yaml:"n_jobs"`
}

// StoreConfig selects the artifact backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" or "bolt"
	Path    string `yaml:"path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataPath: "hypothyroid.csv",
		LogLevel: "info",
		Clean:    CleanConfig{MaxMissing: 3000},
		Split:    SplitConfig{TestSize: 0.2, Seed: 42},
		Select:   SelectConfig{K: 9},
		Forest: ForestConfig{
			NEstimators: 100,
			MaxFeatures: "sqrt",
			Seed:        42,
		},
		Store:       StoreConfig{Backend: artifact.BackendFile, Path: "artifacts"},
		BalanceSeed: 42,
	}
}

// Load returns the defaults, overlaid by the YAML file named by
// THYROID_CONFIG when it is set, then by THYROID_* variables, and validated.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid by the YAML file at path, without
// environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	// 未指定のキーはデフォルト値のまま残る
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString("THYROID_DATA_PATH", &c.DataPath)
	setString("THYROID_LOG_LEVEL", &c.LogLevel)
	setString("THYROID_METRICS_FILE", &c.MetricsFile)
	setString("THYROID_STORE_BACKEND", &c.Store.Backend)
	setString("THYROID_STORE_PATH", &c.Store.Path)
	setString("THYROID_MAX_FEATURES", &c.Forest.MaxFeatures)

	ints := []struct {
		key string
		dst *int
	}{
		{"THYROID_MAX_MISSING", &c.Clean.MaxMissing},
		{"THYROID_K", &c.Select.K},
		{"THYROID_N_ESTIMATORS", &c.Forest.NEstimators},
		{"THYROID_MAX_DEPTH", &c.Forest.MaxDepth},
		{"THYROID_N_JOBS", &c.Forest.NJobs},
	}
	for _, v := range ints {
		if err := setInt(v.key, v.dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("THYROID_TEST_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid THYROID_TEST_SIZE %q", v)
		}
		c.Split.TestSize = f
	}

	// THYROID_SEED は全ステージのシードをまとめて上書きする
	if v := os.Getenv("THYROID_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid THYROID_SEED %q", v)
		}
		c.BalanceSeed, c.Split.Seed, c.Forest.Seed = seed, seed, seed
	}
	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "invalid %s %q", key, v)
	}
	*dst = i
	return nil
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	if c.DataPath == "" {
		return errors.NewValidationError("data_path", "cannot be empty", c.DataPath)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", "must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.Clean.MaxMissing < 0 {
		return errors.NewValidationError("clean.max_missing", "must be non-negative", c.Clean.MaxMissing)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if c.Select.K < 1 {
		return errors.NewValidationError("select.k", "must be at least 1", c.Select.K)
	}
	if c.Forest.NEstimators < 1 {
		return errors.NewValidationError("forest.n_estimators", "must be at least 1", c.Forest.NEstimators)
	}
	if c.Forest.MaxDepth < 0 {
		return errors.NewValidationError("forest.max_depth", "must be non-negative", c.Forest.MaxDepth)
	}
	switch c.Forest.MaxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("forest.max_features", "must be 'sqrt', 'log2' or 'all'", c.Forest.MaxFeatures)
	}
	switch c.Store.Backend {
	case artifact.BackendFile, artifact.BackendBolt:
	default:
		return errors.NewValidationError("store.backend", "must be 'file' or 'bolt'", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.NewValidationError("store.path", "cannot be empty", c.Store.Path)
	}
	return nil
}
