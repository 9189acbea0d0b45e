package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var reactCmd = &cobra.Command{
	Use:   "react [chat-id] [message-id] [emoji]",
	Short: "React to a message",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}
		return wire.Engine.SendReaction(ctx, args[0], args[1], args[2])
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [chat-id] [message-id] [new-body]",
	Short: "Edit a previously sent message",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}
		return wire.Engine.SendEdit(ctx, args[0], args[1], args[2])
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [chat-id] [message-id]",
	Short: "Delete a previously sent message",
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
		return wire.Engine.SendDelete(ctx, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(reactCmd, editCmd, rmCmd)
}
