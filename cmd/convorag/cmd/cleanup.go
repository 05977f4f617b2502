package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
)

func newCleanupCmd() *cobra.Command {
	var flags conversationFlags

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete a conversation's index and messages",
		Long: `Delete a conversation's index files, cached index and message history.
Without --conv, every conversation of the user is deleted.`,
		Example: `  convorag cleanup -u alice -c trip
  convorag cleanup -u alice`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := output.New(cmd.OutOrStdout())
			if flags.conv == "" {
				if err := a.orch.CleanupUser(ctx, flags.user); err != nil {
					return err
				}
				out.Successf("Removed all conversations of %s", flags.user)
				return nil
			}
			if err := a.orch.Cleanup(ctx, flags.user, flags.conv); err != nil {
				return err
			}
			out.Successf("Removed %s/%s", flags.user, flags.conv)
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}
