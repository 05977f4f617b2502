package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/convorag/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		user       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a user's stored conversations",
		Long: `Display a user's conversation indexes (chunks, dimensions, sources and
size on disk), the pool size, the message count and the embedder state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			info, err := collectStatus(ctx, a, user)
			if err != nil {
				return err
			}
			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User id")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectStatus(ctx context.Context, a *app, user string) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		UserID:         user,
		DataDir:        a.store.Root(),
		Conversations:  []ui.ConversationStatus{},
		EmbedderModel:  a.embedder.ModelName(),
		EmbedderStatus: a.embedderStatus(ctx),
	}

	convs, err := a.store.Conversations(user)
	if err != nil {
		return info, err
	}
	for _, conv := range convs {
		idx, _ := a.store.Load(ctx, user, conv)
		info.Conversations = append(info.Conversations, ui.ConversationStatus{
			ID:         conv,
			Chunks:     idx.Len(),
			Dimensions: idx.Dimensions(),
			Sources:    idx.SourceLabels(),
			SizeBytes:  dirSize(filepath.Join(a.store.Root(), user, conv)),
		})
		n, err := a.messages.Count(ctx, user, conv)
		if err == nil {
			info.Messages += n
		}
	}

	if idx := a.orch.Discovery(); idx != nil {
		info.PoolDir = idx.Pool()
		if err := idx.Build(ctx); err == nil {
			info.PoolFiles = len(idx.Records())
		}
	}
	return info, nil
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
