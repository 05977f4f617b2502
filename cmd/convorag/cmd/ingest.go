package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/output"
	"github.com/Aman-CERP/convorag/internal/retrieval"
	"github.com/Aman-CERP/convorag/internal/ui"
)

// conversationFlags are the --user and --conv flags shared by most commands.
type conversationFlags struct {
	user string
	conv string
}

func (f *conversationFlags) register(cmd *cobra.Command, convRequired bool) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "User id")
	cmd.Flags().StringVarP(&f.conv, "conv", "c", "", "Conversation id")
	_ = cmd.MarkFlagRequired("user")
	if convRequired {
		_ = cmd.MarkFlagRequired("conv")
	}
}

func newIngestCmd() *cobra.Command {
	var (
		flags  conversationFlags
		plain  bool
		source string
	)

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Add documents to a conversation's index",
		Long: `Extract, chunk, embed and store documents in a conversation's index.

Supported formats: pdf, docx, xlsx, csv/tsv, txt/md and common source files.
With '-' as the only argument, text is read from stdin and stored under
the --source label.`,
		Example: `  convorag ingest -u alice -c trip report.pdf notes.md
  cat notes.txt | convorag ingest -u alice -c trip --source notes -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, flags, args, source, plain)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().StringVar(&source, "source", "stdin", "Source label for text read from stdin")
	return cmd
}

func runIngest(cmd *cobra.Command, flags conversationFlags, args []string, source string, plain bool) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		n, err := a.orch.IngestText(ctx, flags.user, flags.conv, source, string(data))
		if err != nil {
			return err
		}
		output.New(cmd.OutOrStdout()).Successf("Stored %d chunks from %s", n, source)
		return nil
	}

	cfg := ui.NewConfig(cmd.OutOrStdout())
	cfg.ForcePlain = plain

	var failed []string
	for _, path := range args {
		if err := ingestOne(cmd, a, cfg, flags, path); err != nil {
			failed = append(failed, filepath.Base(path))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to ingest: %s", strings.Join(failed, ", "))
	}
	return nil
}

// ingestOne ingests path with a fresh renderer so each file gets its own
// progress display.
func ingestOne(cmd *cobra.Command, a *app, cfg ui.Config, flags conversationFlags, path string) error {
	renderer := ui.NewRenderer(cfg)
	if err := renderer.Start(cmd.Context()); err != nil {
		return err
	}
	name := filepath.Base(path)
	chunks := 0
	a.orch.SetProgress(func(stage retrieval.Stage, done, total int) {
		if stage == retrieval.StageDone {
			chunks = total
			return
		}
		renderer.UpdateProgress(ui.ProgressEvent{Stage: uiStage(stage), Current: done, Total: total, File: name})
	})
	defer a.orch.SetProgress(nil)

	start := time.Now()
	n, err := a.orch.IngestFile(cmd.Context(), flags.user, flags.conv, path)
	stats := ui.CompletionStats{
		File:       name,
		Chunks:     chunks,
		Stored:     n,
		Duration:   time.Since(start),
		Err:        err,
		Embedder:   a.embedder.ModelName(),
		Dimensions: a.embedder.Dimensions(),
	}
	renderer.Complete(stats)
	_ = renderer.Stop()
	return err
}

func uiStage(s retrieval.Stage) ui.Stage {
	switch s {
	case retrieval.StageExtract:
		return ui.StageExtract
	case retrieval.StageChunk:
		return ui.StageChunk
	case retrieval.StageEmbed:
		return ui.StageEmbed
	case retrieval.StageStore:
		return ui.StageStore
	default:
		return ui.StageComplete
	}
}
