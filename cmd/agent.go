package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newAgentCmd(app *app) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the agents of a session",
	}

	agentCmd.AddCommand(
		newAgentAddCmd(app),
		newAgentRemoveCmd(app),
		newAgentStatusCmd(app),
		newAgentListCmd(app),
	)

	return agentCmd
}

func newAgentAddCmd(app *app) *cobra.Command {
	var (
		role string
		task string
	)

	cmd := &cobra.Command{
		Use:   "add <session-id> <agent-name>",
		Short: "Register an agent in a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := app.registry.AddAgent(cmd.Context(), domain.SessionID(args[0]), args[1], role, task)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s joined session %s as %s (%s)\n", agent.Name, agent.SessionID, agent.Role, agent.Status)
			return err
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role the agent fills (builder, reviewer, ...)")
	cmd.Flags().StringVar(&task, "task", "", "initial task for the agent")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func newAgentRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id> <agent-name>",
		Short: "Unregister an agent, releasing every lock it holds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			released, err := app.registry.RemoveAgent(cmd.Context(), domain.SessionID(args[0]), args[1])
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Agent %s left session %s\n", args[1], args[0]); err != nil {
				return err
			}
			for _, lock := range released {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", lock.ResourceID); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newAgentStatusCmd(app *app) *cobra.Command {
	var (
		status string
		task   string
	)

	cmd := &cobra.Command{
		Use:   "status <session-id> <agent-name>",
		Short: "Update an agent's status and current task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])
			name := args[1]

			if err := app.registry.UpdateStatus(cmd.Context(), id, name, domain.AgentStatus(status), task); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Agent %s is now %s\n", name, status)
			return err
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "new status (active, idle, waiting, done)")
	cmd.Flags().StringVar(&task, "task", "", "what the agent is working on")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}

func newAgentListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <session-id>",
		Short: "List the agents of a session in join order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := app.registry.Agents(cmd.Context(), domain.SessionID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(agents)
			}

			if len(agents) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No agents registered.")
				return err
			}

			for _, agent := range agents {
				line := fmt.Sprintf("%s (%s) %s", agent.Name, agent.Role, agent.Status)
				if agent.CurrentTask != "" {
					line += " - " + agent.CurrentTask
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}
