package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/config"
	"github.com/marcopeg/mondo-sub000/internal/logging"
	"github.com/marcopeg/mondo-sub000/internal/ui"
)

var (
	// Global flags
	vaultName     string // Named vault from config
	vaultPathFlag string // Explicit path
	configPath    string
	entitiesFlag  string
	logLevelFlag  levelFlag

	// Resolved values
	resolvedVaultPath string
	cfg               *config.Config
	logger            = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mondo",
	Short: "Mondo - typed notes and the relationships between them",
	Long: `Mondo reads typed markdown notes from a vault and shows how they relate.

Entities, panels and pickers are declared in .mondo/entities.yaml; notes
stay plain files with YAML frontmatter.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "completion", "help", "version":
			return nil
		}

		var err error
		cfg, err = loadGlobalConfig()
		if err != nil {
			return abort(cmd, ErrConfigInvalid, err.Error(), "")
		}
		ui.ConfigureTheme(cfg.UI.Accent)

		level := cfg.Level()
		if logLevelFlag != "" {
			level = string(logLevelFlag)
		}
		if l, err := logging.New(level); err == nil {
			logger = l
		}

		resolvedVaultPath, err = resolveVaultPath(cfg)
		if err != nil {
			return abort(cmd, ErrVaultNotSpecified, err.Error(), `Either:
  1. Use --vault <name> (from config)
  2. Use --vault-path /path/to/vault
  3. Set MONDO_VAULT_PATH
  4. Set default_vault in ~/.config/mondo/config.toml`)
		}
		if info, err := os.Stat(resolvedVaultPath); err != nil || !info.IsDir() {
			return abort(cmd, ErrVaultNotFound, fmt.Sprintf("vault not found: %s", resolvedVaultPath), "")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&vaultName, "vault", "v", "", "Named vault from config")
	rootCmd.PersistentFlags().StringVar(&vaultPathFlag, "vault-path", "", "Explicit path to vault directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&entitiesFlag, "entities", "", "Path to the entities file (overrides entities_file in config)")
	rootCmd.PersistentFlags().Var(&logLevelFlag, "log-level", "Log level: debug, info, warn or error (overrides log_level in config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for script use)")
}

// levelFlag is a flag value restricted to the log level names.
type levelFlag string

var _ pflag.Value = (*levelFlag)(nil)

func (l *levelFlag) String() string { return string(*l) }
func (l *levelFlag) Type() string   { return "level" }

func (l *levelFlag) Set(s string) error {
	if _, err := logging.ParseLevel(s); err != nil {
		return err
	}
	*l = levelFlag(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// abort stops the command before it runs. In JSON mode the error is written
// as an envelope and Cobra is told not to print it again.
func abort(cmd *cobra.Command, code, message, suggestion string) error {
	if err := handleErrorMsg(code, message, suggestion); err != nil {
		return err
	}
	cmd.SilenceErrors = true
	cmd.Root().SilenceErrors = true
	return errors.New(message)
}

// getVaultPath returns the resolved vault path.
func getVaultPath() string {
	return resolvedVaultPath
}

// getConfig returns the loaded config, never nil.
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

// resolveVaultPath picks the vault: explicit path > named vault >
// MONDO_VAULT_PATH > default vault.
func resolveVaultPath(c *config.Config) (string, error) {
	if vaultPathFlag != "" {
		return vaultPathFlag, nil
	}
	if vaultName != "" {
		return c.GetVaultPath(vaultName)
	}
	path, err := c.GetVaultPath("")
	if err != nil {
		return "", fmt.Errorf("no vault specified")
	}
	return path, nil
}

func loadGlobalConfig() (*config.Config, error) {
	if strings.TrimSpace(configPath) == "" {
		return config.Load()
	}
	loaded, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	loaded.ApplyEnv()
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return loaded, nil
}
