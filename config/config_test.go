package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thyroid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.Clean.MaxMissing)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, 9, cfg.Select.K)
	assert.Equal(t, 100, cfg.Forest.NEstimators)
	assert.Equal(t, "sqrt", cfg.Forest.MaxFeatures)
	assert.Equal(t, int64(42), cfg.BalanceSeed)
	assert.Equal(t, int64(42), cfg.Split.Seed)
	assert.Equal(t, int64(42), cfg.Forest.Seed)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(FileEnv, "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
data_path: data/thyroid.csv
log_level: debug
select:
  k: 5
forest:
  n_estimators: 10
store:
  backend: bolt
  path: run.db
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "data/thyroid.csv", cfg.DataPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Select.K)
	assert.Equal(t, 10, cfg.Forest.NEstimators)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "run.db", cfg.Store.Path)

	// 指定していない値はデフォルトのまま
	assert.Equal(t, "sqrt", cfg.Forest.MaxFeatures)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, int64(42), cfg.Forest.Seed)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "select:\n  k: 5\nsplit:\n  test_size: 0.3\n")
	t.Setenv(FileEnv, path)
	t.Setenv("THYROID_K", "7")
	t.Setenv("THYROID_SEED", "7")
	t.Setenv("THYROID_STORE_BACKEND", "bolt")
	t.Setenv("THYROID_METRICS_FILE", "/tmp/thyroid.prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Select.K)
	assert.Equal(t, 0.3, cfg.Split.TestSize)
	assert.Equal(t, int64(7), cfg.BalanceSeed)
	assert.Equal(t, int64(7), cfg.Split.Seed)
	assert.Equal(t, int64(7), cfg.Forest.Seed)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "/tmp/thyroid.prom", cfg.MetricsFile)
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"THYROID_K", "nine"},
		{"THYROID_TEST_SIZE", "a fifth"},
		{"THYROID_SEED", "4.2"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(FileEnv, "")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadFile(writeFile(t, "select: [1, 2"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"empty data path", func(c *Config) { c.DataPath = "" }, "data_path"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"negative max missing", func(c *Config) { c.Clean.MaxMissing = -1 }, "clean.max_missing"},
		{"test size zero", func(c *Config) { c.Split.TestSize = 0 }, "split.test_size"},
		{"test size one", func(c *Config) { c.Split.TestSize = 1 }, "split.test_size"},
		{"k zero", func(c *Config) { c.Select.K = 0 }, "select.k"},
		{"no trees", func(c *Config) { c.Forest.NEstimators = 0 }, "forest.n_estimators"},
		{"negative depth", func(c *Config) { c.Forest.MaxDepth = -2 }, "forest.max_depth"},
		{"bad max features", func(c *Config) { c.Forest.MaxFeatures = "half" }, "forest.max_features"},
		{"bad backend", func(c *Config) { c.Store.Backend = "s3" }, "store.backend"},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}
