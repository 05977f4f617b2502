package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/logging"
	"github.com/Aman-CERP/convorag/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Print the last entries of the convorag log file. Logs are written by
'convorag serve' and by any command run with --debug.`,
		Example: `  convorag logs
  convorag logs -n 200 --level warn`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}
			entries, err := logging.Tail(path, lines, level)
			if err != nil {
				return err
			}
			color := !noColor && !ui.DetectNoColor() && ui.IsTTY(cmd.OutOrStdout())
			for _, e := range entries {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), logging.Format(e, color)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show (0 = all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default ~/.convorag/logs/convorag.log)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	return cmd
}
