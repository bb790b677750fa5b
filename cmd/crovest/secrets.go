package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/crovest/command-center/internal/vault"
)

func secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage secrets in the OS keychain",
		Long: fmt.Sprintf(`Secrets are stored in the OS keychain under the "crovest" service and
referenced from the config as keyring://crovest/<name>.

Known secrets: %s`, strings.Join(vault.KnownSecrets, ", ")),
	}
	cmd.AddCommand(secretsSetCmd(), secretsListCmd(), secretsDeleteCmd())
	return cmd
}

func secretsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from the terminal without echo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if !slices.Contains(vault.KnownSecrets, name) {
				color.Yellow("warning: %q is not referenced by any config setting", name)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enter value for %s: ", name)
			secret, err := readSecret(cmd.InOrStdin())
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			if secret == "" {
				return errors.New("empty secret not stored")
			}

			if err := vault.New().Set(name, secret); err != nil {
				return fmt.Errorf("storing secret: %w", err)
			}
			color.Green("Secret %s stored", name)
			fmt.Fprintf(cmd.OutOrStdout(), "Reference it as keyring://crovest/%s\n", name)
			return nil
		},
	}
}

// readSecret reads without echo from a terminal, or one line from any other
// reader so values can be piped in.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func secretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List which known secrets are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := vault.New().List()
			if err != nil {
				return fmt.Errorf("listing secrets: %w", err)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored")
				return nil
			}
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: ****\n", n)
			}
			return nil
		},
	}
}

func secretsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if err := vault.New().Delete(name); err != nil {
				return fmt.Errorf("deleting secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %s deleted\n", name)
			return nil
		},
	}
}
