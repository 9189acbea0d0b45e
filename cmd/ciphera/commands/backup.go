package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ciphera/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup [output-path]",
	Short: "Write a passphrase-encrypted snapshot of every local record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Backup passphrase: ")
		if err != nil {
			return err
		}
		blob, err := backup.Backup(context.Background(), wire.Stores, passphrase)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], blob, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [input-path]",
	Short: "Restore every local record from a passphrase-encrypted snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		passphrase, err := promptPassphrase(cmd, "Backup passphrase: ")
		if err != nil {
			return err
		}
		if _, err := backup.Restore(context.Background(), wire.Stores, blob, passphrase); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "restore complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
