package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration to .crashguard.yaml in the
current directory, or to ~/.config/crashguard/config.yaml with --user.`,
	RunE: runInit,
}

var (
	initForce bool
	initUser  bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().BoolVar(&initUser, "user", false, "Write the per-user configuration instead")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, err := initTarget()
	if err != nil {
		return err
	}

	data := []byte(config.DefaultConfigYAML)
	if initForce {
		err = config.AtomicWrite(path, data)
	} else {
		err = config.WriteNew(path, data)
	}
	if err != nil {
		if !initForce {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return fmt.Errorf("writing config: %w", err)
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration file:", path)
	}
	return nil
}

func initTarget() (string, error) {
	if initUser {
		dir, err := config.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locating user config directory: %w", err)
		}
		return filepath.Join(dir, config.UserConfigName), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return filepath.Join(cwd, config.ProjectConfigName), nil
}
