package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
)

func newMessageCmd() *cobra.Command {
	var (
		flags conversationFlags
		role  string
	)

	cmd := &cobra.Command{
		Use:   "message <content>",
		Short: "Record a chat message for memory recall",
		Example: `  convorag message -u alice -c trip --role user "Book the 9am ferry"
  convorag message -u alice -c trip --role assistant "Booked, seat 14A."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "user" && role != "assistant" {
				return fmt.Errorf("--role must be user or assistant, got %q", role)
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.orch.RecordMessage(ctx, flags.user, flags.conv, role, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("Recorded message %s", m.ID)
			if len(m.Embedding) == 0 {
				out.Warningf("Embedding failed; the message will not appear in semantic recall")
			}
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&role, "role", "user", "Message role: user or assistant")
	return cmd
}
