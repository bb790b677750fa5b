package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crovest/command-center/internal/config"
	"github.com/crovest/command-center/internal/daemon"
	"github.com/crovest/command-center/internal/seed"
	"github.com/crovest/command-center/internal/vault"
)

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample data, or records from a YAML file",
		Long: `Seed writes the built-in sample data into the configured database.
With --file, the records in that YAML document are loaded instead; tools
whose name already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			data := seed.Sample()
			if file != "" {
				if data, err = seed.ParseFile(file); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := daemon.OpenStore(ctx, cfg, vault.New())
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := seed.Apply(ctx, st, data, time.Now())
			if err != nil {
				return err
			}

			color.Green("Seeded %d records", res.Total())
			fmt.Fprintf(cmd.OutOrStdout(),
				"  tasks %d, clients %d, objectives %d, bots %d, todos %d, tools %d, habits %d\n",
				res.Tasks, res.Clients, res.Objectives, res.Bots, res.Todos, res.Tools, res.Habits)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file to load instead of the sample data")
	return cmd
}
