package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ciphera/internal/domain"
	"ciphera/internal/topic"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to this identity's inbox and every accepted chat topic, and block",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := wire.Identity.Unlock(ctx, passphrase); err != nil {
			return err
		}

		pub, _ := wire.Engine.Self()
		if err := wire.Transport.Subscribe(ctx, topic.InboxTopic(pub), func(payload []byte) {
			wire.Engine.HandleIncoming(context.Background(), payload)
		}); err != nil {
			return err
		}

		chats, err := wire.Stores.Chats.GetAll(ctx)
		if err != nil {
			return err
		}
		for _, chat := range chats {
			if !chat.Accepted {
				continue
			}
			t := topic.DMTopic(chat.ID)
			if chat.Kind == domain.ChatGroup {
				t = topic.GroupTopic(chat.ID)
			}
			if err := wire.Transport.Subscribe(ctx, t, func(payload []byte) {
				wire.Engine.HandleIncoming(context.Background(), payload)
			}); err != nil {
				wire.Logger.Warn("subscribe failed", zap.Error(err))
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "listening. Ctrl-C to stop.")
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
