package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
)

func newDiscoverCmd() *cobra.Command {
	var (
		topK       int
		list       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "discover [query]",
		Short: "Find pool files relevant to a query",
		Long: `Scan the shared document pool and score each file's name and opening
text against a query. Files matched here are what 'context' auto-loads.

Add a .convoragignore file to the pool root to exclude paths.`,
		Example: `  convorag discover "ferry timetable"
  convorag discover --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return fmt.Errorf("a query is required unless --list is given")
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			idx := a.orch.Discovery()
			if idx == nil {
				return fmt.Errorf("discovery is disabled or no pool directory is configured")
			}
			if err := idx.Build(ctx); err != nil {
				return fmt.Errorf("failed to scan pool %s: %w", idx.Pool(), err)
			}

			out := output.New(cmd.OutOrStdout())
			if list {
				records := idx.Records()
				if jsonOutput {
					return out.JSON(records)
				}
				paths := make([]string, len(records))
				for i, r := range records {
					paths[i] = r.Path
				}
				out.List(paths)
				return nil
			}

			matches := idx.Search(ctx, strings.Join(args, " "), topK)
			if jsonOutput {
				return out.JSON(matches)
			}
			if len(matches) == 0 {
				out.Status("🔍", "No relevant pool files")
				return nil
			}
			for i, m := range matches {
				out.Statusf(fmt.Sprintf("%d.", i+1), "%.3f  %s", m.Score, m.Path)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "Maximum files to return")
	cmd.Flags().BoolVar(&list, "list", false, "List every indexed pool file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
