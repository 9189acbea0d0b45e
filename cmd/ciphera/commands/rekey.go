package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var rekeyCmd = &cobra.Command{
	Use:   "rekey [chat-id]",
	Short: "Rebuild a session's ratchet from its DH seed and notify the peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}
		return wire.Engine.Rekey(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(rekeyCmd)
}
