package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crovest/command-center/internal/config"
)

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config to ~/.crovest/crovest.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			return nil
		},
	}
}

func configExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-export [file]",
		Short: "Export the effective config to a TOML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "crovest-export.toml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := config.Load(configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := config.ExportConfig(path); err != nil {
				return fmt.Errorf("exporting config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config exported to %s\n", path)
			return nil
		},
	}
}

func configImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-import <file>",
		Short: "Validate a TOML file and make it the active config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loading first records which file the import overwrites.
			if _, err := config.Load(configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := config.ImportConfig(args[0]); err != nil {
				return fmt.Errorf("importing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config imported from %s\n", args[0])
			return nil
		},
	}
}
