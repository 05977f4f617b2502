// Package cmd provides the CLI commands for convorag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/convorag/internal/errors"
	"github.com/Aman-CERP/convorag/internal/logging"
	"github.com/Aman-CERP/convorag/internal/profiling"
	"github.com/Aman-CERP/convorag/pkg/version"
)

var (
	debugMode      bool
	configDir      string
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// skipCLILogging marks commands that install their own logger.
const skipCLILogging = "convorag/own-logging"

// NewRootCmd creates the root command for the convorag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convorag",
		Short: "Per-conversation hybrid retrieval and memory",
		Long: `convorag keeps a vector and keyword index per user conversation,
auto-loads relevant files from a shared document pool, and recalls
earlier messages as hierarchical memory.

Use the subcommands to ingest documents and query context directly,
or run 'convorag serve' to expose the same operations over MCP.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: startProfilingAndLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			err := stopProfiling()
			stopLogging()
			return err
		},
	}
	cmd.SetVersionTemplate("convorag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.convorag/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "dir", ".", "Directory to load .convorag.yaml and .env from")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newMemoryCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profile = s
	}
	if cmd.Annotations[skipCLILogging] == "true" {
		return nil
	}
	cleanup, err := logging.SetupCLI(debugMode)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("command", cmd.Name()))
	}
	return nil
}

func stopProfiling() error {
	err := profile.Stop()
	profile = nil
	return err
}

func stopLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, cerrors.FormatForCLI(err))
	}
	_ = stopProfiling()
	stopLogging()
	return err
}
