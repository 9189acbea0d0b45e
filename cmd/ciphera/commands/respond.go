package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
)

var respondCmd = &cobra.Command{
	Use:   "respond [request-id] [accept|decline|block]",
	Short: "Respond to a pending chat or group request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		if err := wire.Identity.Unlock(context.Background(), passphrase); err != nil {
			return err
		}

		status, err := parseStatus(args[1])
		if err != nil {
			return err
		}

		req, ok, err := wire.Stores.Requests.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no such request: %s", args[0])
		}

		if req.Kind == domain.RequestGroup {
			return wire.Engine.RespondToGroupInvite(context.Background(), args[0], status)
		}
		return wire.Engine.RespondToRequest(context.Background(), args[0], status)
	},
}

func parseStatus(s string) (domain.RequestStatus, error) {
	switch s {
	case "accept":
		return domain.RequestAccepted, nil
	case "decline":
		return domain.RequestDeclined, nil
	case "block":
		return domain.RequestBlocked, nil
	default:
		return "", fmt.Errorf("unknown response %q: want accept|decline|block", s)
	}
}

func init() {
	rootCmd.AddCommand(respondCmd)
}
