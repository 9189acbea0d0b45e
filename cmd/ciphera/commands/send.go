package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var replyTo string

var sendCmd = &cobra.Command{
	Use:   "send [chat-id] [body]",
	Short: "Send a text message on an accepted DM or group chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}

		chat, ok, err := wire.Stores.Chats.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if ok && chat.Kind == "group" {
			_, err := wire.Engine.SendGroupText(ctx, args[0], args[1])
			return err
		}
		_, err = wire.Engine.SendText(ctx, args[0], args[1], replyTo)
		return err
	},
}

func init() {
	sendCmd.Flags().StringVar(&replyTo, "reply-to", "", "message id being replied to")
	rootCmd.AddCommand(sendCmd)
}
