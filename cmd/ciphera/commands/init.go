package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new identity, sealed under a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		id, err := wire.Identity.GenerateIdentity(context.Background(), passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Identity created. Chat-Key: %s\n", id.ChatKey())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
