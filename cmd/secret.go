package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/spigell/h1b-finder/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage API keys stored in the OS keychain",
}

var secretSetCmd = &cobra.Command{
	Use:       "set <name>",
	Short:     "Store an API key in the OS keychain",
	Args:      secretNameArg,
	ValidArgs: keyringEntries,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := promptui.Prompt{
			Label: args[0],
			Mask:  '*',
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("value is empty")
				}
				return nil
			},
		}

		value, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := secrets.Store(secrets.Keyring{User: args[0]}, strings.TrimSpace(value)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s stored in the keychain\n", args[0])
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:       "delete <name>",
	Short:     "Remove an API key from the OS keychain",
	Args:      secretNameArg,
	ValidArgs: keyringEntries,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.Delete(secrets.Keyring{User: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed from the keychain\n", args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

func secretNameArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one name, one of: %s", strings.Join(keyringEntries, ", "))
	}
	if !slices.Contains(keyringEntries, args[0]) {
		return fmt.Errorf("unknown secret %q, expected one of: %s", args[0], strings.Join(keyringEntries, ", "))
	}
	return nil
}
