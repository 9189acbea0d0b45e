package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/encoding"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Group chat commands",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create [group-id] [name] [member-chat-key...]",
	Short: "Create a group and invite members",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}

		members := make([][32]byte, 0, len(args)-2)
		for _, key := range args[2:] {
			pub, err := encoding.DecodeChatKey(key)
			if err != nil {
				return err
			}
			members = append(members, pub)
		}
		return wire.Engine.CreateGroup(ctx, args[0], args[1], members)
	},
}

var groupSendCmd = &cobra.Command{
	Use:   "send [group-id] [body]",
	Short: "Send a text message to a group",
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
		msg, err := wire.Engine.SendGroupText(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
		return nil
	},
}

func init() {
	groupCmd.AddCommand(groupCreateCmd, groupSendCmd)
	rootCmd.AddCommand(groupCmd)
}
