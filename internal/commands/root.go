package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/fpa/internal/buildinfo"
	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/secrets"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "fpa",
		Short:   "Forecast vs Actual variance analysis with AI commentary",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
				pterm.DisableColor()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFile, "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newAnalyzeCommand(opts))
	rootCmd.AddCommand(newSampleCommand())

	return rootCmd
}

// loadConfig resolves the effective configuration. The default config file
// may be absent; an explicitly named one must exist.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	return config.Resolve(o.configPath, !explicit)
}

// resolveAPIKey looks the credential up in the secrets file, then the
// environment. A missing key is a startup error.
func resolveAPIKey(cfg *config.Config) (key, source string, err error) {
	key, source, err = secrets.Default(cfg.Secrets.File).Resolve(cfg.AI.KeyName)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", "", fmt.Errorf("%s not found: set it in %s (under [%s]) or in the environment: %w",
			cfg.AI.KeyName, cfg.Secrets.File, secrets.GeneralTable, err)
	}
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", cfg.AI.KeyName, err)
	}
	return key, source, nil
}
