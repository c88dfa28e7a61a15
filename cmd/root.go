package cmd

import "github.com/spf13/cobra"

func Execute() error {
	rootCmd, cleanup := newRootCmd()
	defer cleanup()

	return rootCmd.Execute()
}

// newRootCmd wires the command tree. The returned cleanup releases the
// backing store and must run once the command is done.
func newRootCmd() (*cobra.Command, func()) {
	rootCmd := &cobra.Command{
		Use:           "collab",
		Short:         "Coordinate multiple agents working on a shared task",
		Long:          "collab tracks shared work sessions: which agents participate, which resources they hold exclusively, and an append-only history of everything that happened. It hands work between roles through notifications.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd, func() {}
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSessionCmd(app),
		newAgentCmd(app),
		newLockCmd(app),
		newHistoryCmd(app),
		newNotifyCmd(app),
	)

	return rootCmd, func() { _ = app.close() }
}
