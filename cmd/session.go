package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	archivetoml "github.com/bnema/collab-cli/internal/adapters/archive/toml"
	statusadapter "github.com/bnema/collab-cli/internal/adapters/render/status"
	"github.com/bnema/collab-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage collaboration sessions",
	}

	sessionCmd.AddCommand(
		newSessionCreateCmd(app),
		newSessionTransitionCmd(app, "pause", "Pause an active session"),
		newSessionTransitionCmd(app, "resume", "Resume a paused session"),
		newSessionTransitionCmd(app, "complete", "Complete a session, releasing all locks"),
		newSessionTransitionCmd(app, "cancel", "Cancel a session, releasing all locks"),
		newSessionStatusCmd(app),
		newSessionListCmd(app),
		newSessionExportCmd(app),
	)

	return sessionCmd
}

func newSessionCreateCmd(app *app) *cobra.Command {
	var (
		contextNote string
		metaPairs   []string
	)

	cmd := &cobra.Command{
		Use:   "create <session-id>",
		Short: "Create a session, or load it if it already exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(metaPairs)
			if err != nil {
				return err
			}

			session, created, err := app.sessions.CreateOrLoad(cmd.Context(), domain.SessionID(args[0]), contextNote, metadata)
			if err != nil {
				return err
			}

			verb := "Loaded existing"
			if created {
				verb = "Created"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s session %s (%s)\n", verb, session.ID, session.Status)
			return err
		},
	}

	cmd.Flags().StringVar(&contextNote, "context", "", "free-form description of the shared task")
	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "metadata entry as key=value (repeatable)")

	return cmd
}

func newSessionTransitionCmd(app *app, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])

			var (
				session domain.Session
				err     error
			)
			switch verb {
			case "pause":
				session, err = app.sessions.Pause(cmd.Context(), id)
			case "resume":
				session, err = app.sessions.Resume(cmd.Context(), id)
			case "complete":
				session, err = app.sessions.Complete(cmd.Context(), id)
			case "cancel":
				session, err = app.sessions.Cancel(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Session %s is now %s\n", session.ID, session.Status)
			return err
		},
	}
}

func newSessionStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a session with its agents, locks, and recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := app.sessions.Status(cmd.Context(), domain.SessionID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			rendered, err := app.statusRenderer(status, statusadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newSessionListCmd(app *app) *cobra.Command {
	var (
		statusFilter string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := app.sessions.ListSessions(cmd.Context(), domain.SessionStatus(statusFilter))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}

			if len(sessions) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return err
			}

			for _, session := range sessions {
				line := fmt.Sprintf("%s (%s)", session.ID, session.Status)
				if session.Context != "" {
					line += " - " + session.Context
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "only sessions with this status (active, paused, completed, cancelled)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newSessionExportCmd(app *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a full session snapshot to a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])

			status, err := app.sessions.Status(cmd.Context(), id)
			if err != nil {
				return err
			}

			history, err := app.sessions.History(cmd.Context(), id, 0)
			if err != nil {
				return err
			}

			snapshot := archivetoml.Snapshot{
				Session: status.Session,
				Agents:  status.Agents,
				Locks:   status.Locks,
				History: history,
			}
			if err := archivetoml.Write(cmd.Context(), outPath, snapshot); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported session %s to %s\n", id, outPath)
			return err
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "destination file path")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata entry %q, expected key=value", pair)
		}
		metadata[key] = value
	}

	return metadata, nil
}
