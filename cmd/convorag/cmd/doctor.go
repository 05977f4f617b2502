package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
	"github.com/Aman-CERP/convorag/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that convorag can run here",
		Long: `Check the data and message directories, free disk space, file
descriptor limits, the document pool and the embedding provider.

Exits non-zero when a required check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			embedder, err := newEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
			results := checker.RunAll(ctx, preflight.Targets{
				DataDir:    cfg.Paths.DataDir,
				MessagesDB: cfg.Paths.MessagesDB,
				PoolDir:    cfg.Paths.PoolDir,
				Embedder:   embedder,

				MaxOpenIndices: cfg.Store.MaxOpenIndices,
			})

			if jsonOutput {
				if err := output.New(cmd.OutOrStdout()).JSON(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}
			if checker.HasCriticalFailures(results) {
				return errors.New("required checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	return cmd
}
