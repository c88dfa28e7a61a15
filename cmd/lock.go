package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/spf13/cobra"
)

const lockPollInterval = 500 * time.Millisecond

func newLockCmd(app *app) *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage exclusive resource locks within a session",
	}

	lockCmd.AddCommand(
		newLockAcquireCmd(app),
		newLockReleaseCmd(app),
		newLockListCmd(app),
		newLockCheckCmd(app),
	)

	return lockCmd
}

func newLockAcquireCmd(app *app) *cobra.Command {
	var (
		agentName    string
		resourceType string
		wait         bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "acquire <session-id> <resource-id>",
		Short: "Acquire an exclusive lock on a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])
			resourceID := args[1]

			attempt := func(ctx context.Context) (bool, error) {
				return app.locks.Acquire(ctx, id, resourceID, agentName, domain.ResourceType(resourceType))
			}

			var (
				acquired bool
				err      error
			)
			if wait {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()

				label := fmt.Sprintf("Waiting for %s...", resourceID)
				acquired, err = runLockWaitSpinner(ctx, cmd.ErrOrStderr(), label, attempt, lockPollInterval)
			} else {
				acquired, err = attempt(cmd.Context())
			}
			if err != nil {
				return err
			}

			if !acquired {
				holder := lockHolder(cmd.Context(), app, id, resourceID)
				if holder != "" {
					return fmt.Errorf("resource %s is locked by %s", resourceID, holder)
				}
				return fmt.Errorf("resource %s is locked", resourceID)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Locked %s for %s\n", resourceID, agentName)
			return err
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent acquiring the lock")
	cmd.Flags().StringVar(&resourceType, "type", string(domain.ResourceFile), "resource type (file, task, data, ...)")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the lock is acquired or the timeout expires")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up waiting after this duration")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func newLockReleaseCmd(app *app) *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "release <session-id> <resource-id>",
		Short: "Release a lock; without --agent the release is unconditional",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])
			resourceID := args[1]

			released, err := app.locks.Release(cmd.Context(), id, resourceID, agentName)
			if err != nil {
				return err
			}
			if !released {
				return fmt.Errorf("resource %s was not released (not locked, or held by another agent)", resourceID)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", resourceID)
			return err
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "only release if this agent holds the lock")

	return cmd
}

func newLockListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <session-id>",
		Short: "List the locks held in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locks, err := app.locks.Locks(cmd.Context(), domain.SessionID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(locks)
			}

			if len(locks) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No resources locked.")
				return err
			}

			for _, lock := range locks {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] held by %s\n", lock.ResourceID, lock.Type, lock.Holder); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newLockCheckCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <session-id> <resource-id>",
		Short: "Report whether a resource is locked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.SessionID(args[0])
			resourceID := args[1]

			locked, err := app.locks.IsLocked(cmd.Context(), id, resourceID)
			if err != nil {
				return err
			}

			if !locked {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is unlocked\n", resourceID)
				return err
			}

			holder := lockHolder(cmd.Context(), app, id, resourceID)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is locked by %s\n", resourceID, holder)
			return err
		},
	}
}

func lockHolder(ctx context.Context, app *app, id domain.SessionID, resourceID string) string {
	locks, err := app.locks.Locks(ctx, id)
	if err != nil {
		return ""
	}
	for _, lock := range locks {
		if lock.ResourceID == resourceID {
			return lock.Holder
		}
	}
	return ""
}
