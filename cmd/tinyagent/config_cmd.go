package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/martinemde/tinyagent/internal/config"
	"github.com/martinemde/tinyagent/unifiedllm"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to a config file",
		Long: `init writes the defaults, merged with any existing config file and
environment overrides, as YAML. API keys are never written.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				target = os.Getenv(config.ConfigPathEnv)
			}
			if target == "" {
				target = config.DefaultPath()
			}
			if target == "" {
				return unifiedllm.NewConfigurationError("no config location; pass --config")
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}

			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if err := cfg.Save(target); err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "Wrote %s\n", target)
			return err
		},
	}
	initCmd.Flags().StringVar(&path, "config", "", "File to write (default: $TINYAGENT_CONFIG or the user config dir)")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
