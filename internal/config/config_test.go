package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bamsammich/ward/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Workers)
	assert.Nil(t, cfg.Defaults.SealDirs)
	assert.Nil(t, cfg.Theme.Green)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "ward")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
workers = 16
seal-dirs = true
include-git = false
min-free = "512M"
no-progress = true

[theme]
green = "#00ff00"
red = "#ff0000"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Workers)
	assert.Equal(t, 16, *cfg.Defaults.Workers)

	require.NotNil(t, cfg.Defaults.SealDirs)
	assert.True(t, *cfg.Defaults.SealDirs)

	require.NotNil(t, cfg.Defaults.IncludeGit)
	assert.False(t, *cfg.Defaults.IncludeGit)

	require.NotNil(t, cfg.Defaults.MinFree)
	assert.Equal(t, "512M", *cfg.Defaults.MinFree)

	require.NotNil(t, cfg.Defaults.NoProgress)
	assert.True(t, *cfg.Defaults.NoProgress)

	require.NotNil(t, cfg.Theme.Green)
	assert.Equal(t, "#00ff00", *cfg.Theme.Green)

	require.NotNil(t, cfg.Theme.Red)
	assert.Equal(t, "#ff0000", *cfg.Theme.Red)

	// Unset fields should remain nil.
	assert.Nil(t, cfg.Theme.Dim)
	assert.Nil(t, cfg.Theme.Bright)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "ward")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[theme]
bright = "#ffffff"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Nil(t, cfg.Defaults.Workers)
	assert.Nil(t, cfg.Defaults.SealDirs)

	require.NotNil(t, cfg.Theme.Bright)
	assert.Equal(t, "#ffffff", *cfg.Theme.Bright)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "ward")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("invalid [[["), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/ward/config.toml", config.Path())
}
