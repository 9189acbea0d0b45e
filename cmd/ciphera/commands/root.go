// Package commands implements the ciphera CLI surface: one cobra command
// per engine operation, sharing a *app.Wire built in PersistentPreRunE.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ciphera/internal/app"
)

var wire *app.Wire

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "ciphera",
	Short: "A peer-to-peer end-to-end encrypted chat client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if homeDir == "" {
			dir, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			homeDir = filepath.Join(dir, ".ciphera")
		}
		w, err := app.NewWire(homeDir)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		wire = w
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "account home directory (default: ~/.ciphera)")
}
