package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/secrets"
)

const (
	secretsFile = "secrets.toml"
	sampleFile  = "sample.csv"
)

const secretsHeader = `# Credentials for fpa. Keep this file out of version control.
# Keys are read from the [general] table first, then the top level,
# then the environment.

`

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter config, secrets template and sample CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Initialized fpa project at %s", absDir)
			return nil
		},
	}

	return cmd
}

func runInit(dir string) error {
	cfgPath := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Write fpa.yaml.
	cfg := config.Default()
	cfg.Secrets.File = secretsFile
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the secrets template unless one is already there.
	secretsPath := filepath.Join(dir, secretsFile)
	if _, err := os.Stat(secretsPath); errors.Is(err, fs.ErrNotExist) {
		if err := writeSecretsTemplate(secretsPath, cfg.AI.KeyName); err != nil {
			return err
		}
	}

	// Write the sample dataset.
	if err := os.WriteFile(filepath.Join(dir, sampleFile), []byte(ingest.SampleCSV), 0o644); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}

	// Write .gitignore.
	gitignore := secretsFile + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

func writeSecretsTemplate(path, keyName string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating secrets file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(secretsHeader); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	tmpl := map[string]map[string]string{secrets.GeneralTable: {keyName: ""}}
	if err := toml.NewEncoder(f).Encode(tmpl); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	return nil
}
