package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print this identity's Chat-Key",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		if err := wire.Identity.Unlock(context.Background(), passphrase); err != nil {
			return err
		}
		_, chatKey := wire.Engine.Self()
		fmt.Fprintln(cmd.OutOrStdout(), chatKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
}
