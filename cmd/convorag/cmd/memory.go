package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
)

func newMemoryCmd() *cobra.Command {
	var (
		flags      conversationFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "memory <query>",
		Short: "Show the conversation memory for a message",
		Long: `Assemble hierarchical memory for the latest user message: the stored
summary, earlier messages semantically related to the query, and the
recent message window. Closing remarks ("thanks, bye") return only the
summary.`,
		Example: `  convorag memory -u alice -c trip "what did we decide about the hotel?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			snap := a.orch.GetMemory(ctx, strings.Join(args, " "), flags.user, flags.conv)
			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(snap)
			}
			rendered := snap.Render()
			if rendered == "" {
				out.Status("💭", "No memory for this conversation yet")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the snapshot as JSON")
	cmd.AddCommand(newSummaryCmd())
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var flags conversationFlags

	cmd := &cobra.Command{
		Use:   "summary [text]",
		Short: "Show or replace a conversation's summary",
		Example: `  convorag memory summary -u alice -c trip
  convorag memory summary -u alice -c trip "Planning a ferry trip to the islands in May."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := output.New(cmd.OutOrStdout())
			if len(args) == 0 {
				summary, ok, err := a.messages.Summary(ctx, flags.user, flags.conv)
				if err != nil {
					return err
				}
				if !ok {
					out.Status("💭", "No summary stored")
					return nil
				}
				out.Block("Summary", summary)
				return nil
			}

			if err := a.messages.SetSummary(ctx, flags.user, flags.conv, strings.Join(args, " ")); err != nil {
				return err
			}
			out.Successf("Summary updated for %s/%s", flags.user, flags.conv)
			return nil
		},
	}

	flags.register(cmd, true)
	return cmd
}
