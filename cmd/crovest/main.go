package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crovest/command-center/internal/version"
)

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "crovest",
		Short:   "Crovest Command Center - personal operations dashboard",
		Version: version.String(),
		Long: `Crovest runs the command center: a REST API over todos, tasks, decisions,
objectives, costs, tools, habits and clients, a live log stream, and the
embedded dashboard.`,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.crovest/crovest.toml)")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(configExportCmd())
	rootCmd.AddCommand(configImportCmd())
	rootCmd.AddCommand(secretsCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
