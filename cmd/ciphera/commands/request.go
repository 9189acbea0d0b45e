package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/encoding"
)

var requestCmd = &cobra.Command{
	Use:   "request [chat-key] [intro]",
	Short: "Send a chat request to a peer's Chat-Key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		if err := wire.Identity.Unlock(context.Background(), passphrase); err != nil {
			return err
		}
		toPub, err := encoding.DecodeChatKey(args[0])
		if err != nil {
			return err
		}
		req, err := wire.Engine.SendRequest(context.Background(), toPub, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Request sent: %s\n", req.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
}
