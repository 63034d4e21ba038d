package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigGetVaultPath(t *testing.T) {
	cfg := &Config{
		DefaultVault: "personal",
		Vaults: map[string]string{
			"work":     "/path/to/work",
			"personal": "/path/to/personal",
		},
	}

	t.Run("named vault", func(t *testing.T) {
		path, err := cfg.GetVaultPath("work")
		require.NoError(t, err)
		assert.Equal(t, "/path/to/work", path)
	})

	t.Run("default vault", func(t *testing.T) {
		path, err := cfg.GetVaultPath("")
		require.NoError(t, err)
		assert.Equal(t, "/path/to/personal", path)
	})

	t.Run("environment wins over default", func(t *testing.T) {
		withEnv := *cfg
		withEnv.VaultPath = "/from/env"
		path, err := withEnv.GetVaultPath("")
		require.NoError(t, err)
		assert.Equal(t, "/from/env", path)

		path, err = withEnv.GetVaultPath("work")
		require.NoError(t, err)
		assert.Equal(t, "/path/to/work", path)
	})

	t.Run("missing vault", func(t *testing.T) {
		_, err := cfg.GetVaultPath("nope")
		assert.Error(t, err)

		_, err = (&Config{}).GetVaultPath("")
		assert.Error(t, err)
	})
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `default_vault = "notes"
entities_file = "meta/entities.yaml"
log_level = "debug"

[vaults]
notes = "/srv/notes"

[ui]
accent = "#33aaff"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "notes", cfg.DefaultVault)
	assert.Equal(t, "meta/entities.yaml", cfg.EntitiesFile)
	assert.Equal(t, "debug", cfg.Level())
	assert.Equal(t, ".md", cfg.NoteExtension())
	assert.Equal(t, "#33aaff", cfg.UI.Accent)
}

func TestLoadFromRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_vault = \n"), 0o644))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"bad level", Config{LogLevel: "loud"}, true},
		{"extension without dot", Config{Extension: "md"}, true},
		{"extension ok", Config{Extension: ".markdown"}, false},
		{"unknown default vault", Config{DefaultVault: "x"}, true},
		{"bad accent", Config{UI: UIConfig{Accent: "blue"}}, true},
		{"ansi accent", Config{UI: UIConfig{Accent: "39"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MONDO_LOG_LEVEL=INFO\n"), 0o644))

	t.Setenv(EnvVaultPath, "/env/vault")
	t.Setenv(EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	require.NoError(t, LoadDotEnv(envFile))
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	cfg := &Config{LogLevel: "error"}
	cfg.ApplyEnv()
	assert.Equal(t, "/env/vault", cfg.VaultPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mondo", "config.toml")
	got, err := CreateDefault(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
