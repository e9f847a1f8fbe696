package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingPathReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Viewports)
	require.Equal(t, 1, cfg.MaxConcurrency)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Networks)
}

func TestLoadParsesDocument(t *testing.T) {
	doc := `
max_concurrency = 4

[storage]
root = "/tmp/testgpt-data"

[model]
api_key_env_var = "MY_KEY"
default_model = "gemini-2.5-pro"

[[viewports]]
name = "desktop-standard"
display_name = "Desktop"
width = 1440
height = 900
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.MaxConcurrency)
	require.Equal(t, "/tmp/testgpt-data", cfg.Storage.Root)
	require.Equal(t, "MY_KEY", cfg.Model.APIKeyEnvVar)
	require.Len(t, cfg.Viewports, 1)
	require.Equal(t, "desktop-standard", cfg.Viewports[0].Name)
}
