package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
	"github.com/Aman-CERP/convorag/internal/retrieval"
	"github.com/Aman-CERP/convorag/internal/search"
)

func newContextCmd() *cobra.Command {
	var (
		flags      conversationFlags
		topK       int
		jsonOutput bool
		noAutoLoad bool
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Retrieve relevant chunks for a query",
		Long: `Rank a conversation's chunks against a query with hybrid vector and
keyword scoring and print the ones above the relevance threshold.

Relevant pool files are ingested into the conversation first unless
auto-loading is disabled.`,
		Example: `  convorag context -u alice -c trip "when does the ferry leave?"
  convorag context -u alice -c trip --json -k 3 "ferry timetable"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noAutoLoad {
				cfg.Discovery.AutoLoad = false
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			query := strings.Join(args, " ")
			results := a.orch.Search(ctx, query, flags.user, flags.conv, topK)
			return printResults(cmd, results, jsonOutput)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum chunks to return (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output scored results as JSON")
	cmd.Flags().BoolVar(&noAutoLoad, "no-auto-load", false, "Do not ingest matching pool files first")
	return cmd
}

func printResults(cmd *cobra.Command, results []search.Result, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		if results == nil {
			results = []search.Result{}
		}
		return out.JSON(results)
	}
	if len(results) == 0 {
		out.Status("🔍", "No relevant context found")
		return nil
	}
	_, err := cmd.OutOrStdout().Write([]byte(strings.Join(search.Texts(results), retrieval.Separator) + "\n"))
	return err
}
