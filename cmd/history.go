package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the session history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.sessions.History(cmd.Context(), domain.SessionID(args[0]), limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No history yet.")
				return err
			}

			for _, entry := range entries {
				line := fmt.Sprintf("#%d %s %s %s", entry.Seq, entry.Timestamp.Format(time.RFC3339), entry.Actor(), entry.Action)
				if entry.Detail != "" {
					line += " - " + entry.Detail
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "only the N most recent entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}
