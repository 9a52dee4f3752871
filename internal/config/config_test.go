package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HEALTHDASH_DATA_DIRECTORY", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 0.05, cfg.Alpha)
	assert.Equal(t, 3, cfg.MinGroupSize)
	assert.Equal(t, "healthcare_dataset.csv", cfg.DataFile)
	assert.Equal(t, filepath.Join(dir, "healthcare_dataset.csv"), cfg.DataPath())
	assert.Equal(t, filepath.Join(dir, "exports"), cfg.ExportDirectory)
	assert.DirExists(t, cfg.ExportDirectory)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HEALTHDASH_DATA_DIR", dir)
	t.Setenv("HEALTHDASH_LISTEN_ADDR", ":9999")
	t.Setenv("HEALTHDASH_DEBUG", "true")
	t.Setenv("HEALTHDASH_ALPHA", "0.01")
	t.Setenv("HEALTHDASH_LOG_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDirectory)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 0.01, cfg.Alpha)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "healthdash.yaml")
	content := "data_directory: " + dir + "\ndata_file: patients.csv\nmin_group_size: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "patients.csv"), cfg.DataPath())
	assert.Equal(t, 5, cfg.MinGroupSize)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"alpha zero", func(c *Config) { c.Alpha = 0 }, false},
		{"alpha one", func(c *Config) { c.Alpha = 1 }, false},
		{"small groups", func(c *Config) { c.MinGroupSize = 2 }, false},
		{"no data file", func(c *Config) { c.DataFile = "" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDirectory = dir
	cfg.ExportDirectory = filepath.Join(dir, "exports")
	cfg.MinGroupSize = 4

	path := filepath.Join(dir, "conf", "healthdash.yaml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.MinGroupSize)
	assert.Equal(t, dir, loaded.DataDirectory)
}
