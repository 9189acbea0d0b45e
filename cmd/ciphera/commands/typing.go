package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var typingCmd = &cobra.Command{
	Use:   "typing [chat-id] [true|false]",
	Short: "Send a typing indicator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		isTyping, err := strconv.ParseBool(args[1])
		if err != nil {
			return err
		}
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}
		return wire.Engine.SendTyping(ctx, args[0], isTyping)
	},
}

func init() {
	rootCmd.AddCommand(typingCmd)
}
