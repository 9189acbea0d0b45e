package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach [chat-id] [file-path]",
	Short: "Send a file as a chunked attachment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
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
		name := filepath.Base(args[1])
		attachmentID, err := wire.Engine.SendAttachment(ctx, args[0], name, mimeFor(name), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "attachment sent: %s\n", attachmentID)
		return nil
	},
}

func mimeFor(name string) string {
	switch filepath.Ext(name) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
