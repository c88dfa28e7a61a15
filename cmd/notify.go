package cmd

import (
	"fmt"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newNotifyCmd(app *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "notify <session-id> <role>",
		Short: "Hand work to the first agent holding a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handoff, err := app.sessions.NotifyNextRole(cmd.Context(), domain.SessionID(args[0]), args[1], message)
			if err != nil {
				return err
			}

			if !handoff.Resolved {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "No agent with role %s in session %s\n", handoff.Role, handoff.SessionID)
				return err
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Notified %s (%s)\n", handoff.AgentName, handoff.Role); err != nil {
				return err
			}
			if handoff.DeliveryErr != nil {
				if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "Warning: notification not delivered: %v\n", handoff.DeliveryErr); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "message included in the notification")

	return cmd
}
