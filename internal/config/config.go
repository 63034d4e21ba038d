// Package config handles global mondo configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

// Environment variables that override file values.
const (
	EnvVaultPath = "MONDO_VAULT_PATH"
	EnvLogLevel  = "MONDO_LOG_LEVEL"
)

// Log levels accepted by LogLevel.
var logLevels = []any{"debug", "info", "warn", "error"}

var accentPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{6}|[0-9]{1,3})$`)

// Config represents the global mondo configuration.
type Config struct {
	// DefaultVault is the name of the default vault (from Vaults map).
	DefaultVault string `toml:"default_vault"`

	// Vaults is a map of vault names to paths.
	Vaults map[string]string `toml:"vaults"`

	// EntitiesFile overrides the vault-relative entity configuration path
	// (default .mondo/entities.yaml).
	EntitiesFile string `toml:"entities_file"`

	// Extension is the note file extension (default ".md").
	Extension string `toml:"extension"`

	// LogLevel is one of debug, info, warn, error (default warn).
	LogLevel string `toml:"log_level"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`

	// VaultPath is set from MONDO_VAULT_PATH and wins over the named vaults.
	VaultPath string `toml:"-"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In(logLevels...)),
		validation.Field(&c.Extension, validation.When(c.Extension != "",
			validation.By(func(any) error {
				if !strings.HasPrefix(c.Extension, ".") || strings.Contains(c.Extension, "/") {
					return errors.New("must start with a dot")
				}
				return nil
			}))),
		validation.Field(&c.DefaultVault, validation.When(c.DefaultVault != "",
			validation.By(func(any) error {
				if _, ok := c.Vaults[c.DefaultVault]; !ok {
					return fmt.Errorf("vault %q is not in [vaults]", c.DefaultVault)
				}
				return nil
			}))),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.UI,
		validation.Field(&c.UI.Accent, validation.Match(accentPattern)),
	)
}

// GetVaultPath returns the path for a named vault.
// If name is empty, returns MONDO_VAULT_PATH or the default vault path.
func (c *Config) GetVaultPath(name string) (string, error) {
	if name == "" && c.VaultPath != "" {
		return c.VaultPath, nil
	}
	if name == "" {
		name = c.DefaultVault
	}
	if path, ok := c.Vaults[name]; ok && name != "" {
		return expandHome(path), nil
	}
	if name == "" {
		return "", fmt.Errorf("no default vault configured")
	}
	return "", fmt.Errorf("vault '%s' not found in config", name)
}

// NoteExtension returns the configured extension or the default.
func (c *Config) NoteExtension() string {
	if c.Extension != "" {
		return c.Extension
	}
	return model.DefaultExtension
}

// Level returns the configured log level, defaulting to warn.
func (c *Config) Level() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "warn"
}

// Load loads the configuration from the default location, then applies a
// .env file from the working directory and the environment overrides.
// A missing config file yields the defaults.
func Load() (*Config, error) {
	configPath := DefaultPath()

	cfg := &Config{}
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := LoadFrom(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &config, nil
}

// LoadDotEnv loads variables from an env file into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies MONDO_VAULT_PATH and MONDO_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvVaultPath)); v != "" {
		c.VaultPath = expandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// DefaultPath returns the default config file path.
// Checks ~/.config/mondo/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "mondo", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "mondo", "config.toml")
	}
	return filepath.Join(".", "config.toml")
}

// CreateDefault creates a default config file if it doesn't exist.
func CreateDefault(configPath string) (string, error) {
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := `# mondo configuration

# Default vault name (must exist in [vaults] below)
# default_vault = "personal"

# Named vaults
# [vaults]
# personal = "/path/to/your/notes"

# Entity configuration, relative to the vault (default .mondo/entities.yaml)
# entities_file = ".mondo/entities.yaml"

# extension = ".md"
# log_level = "warn"

# Optional UI accent color for headers in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
`
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configPath, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
