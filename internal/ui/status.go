package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// ConversationStatus describes one stored conversation index.
type ConversationStatus struct {
	ID         string   `json:"id"`
	Chunks     int      `json:"chunks"`
	Dimensions int      `json:"dimensions"`
	Sources    []string `json:"sources"`
	SizeBytes  int64    `json:"size_bytes"`
}

// StatusInfo contains store health for one user.
type StatusInfo struct {
	UserID        string               `json:"user_id"`
	DataDir       string               `json:"data_dir"`
	Conversations []ConversationStatus `json:"conversations"`
	PoolDir       string               `json:"pool_dir,omitempty"`
	PoolFiles     int                  `json:"pool_files"`
	Messages      int                  `json:"messages"`

	EmbedderModel  string `json:"embedder_model"`
	EmbedderStatus string `json:"embedder_status"` // "ready", "fallback", "offline"
}

// StatusRenderer displays status info.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes info as text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Status: "+info.UserID))
	_, _ = fmt.Fprintf(r.out, "  Data dir: %s\n", info.DataDir)

	if len(info.Conversations) == 0 {
		_, _ = fmt.Fprintf(r.out, "  Conversations: %s\n", r.styles.Dim.Render("none"))
	} else {
		_, _ = fmt.Fprintln(r.out, "  Conversations:")
		for _, c := range info.Conversations {
			_, _ = fmt.Fprintf(r.out, "    %-24s %5d chunks  %4d dims  %8s  %d sources\n",
				c.ID, c.Chunks, c.Dimensions, FormatBytes(c.SizeBytes), len(c.Sources))
		}
	}
	_, _ = fmt.Fprintln(r.out)

	if info.PoolDir != "" {
		_, _ = fmt.Fprintf(r.out, "  Pool: %s (%d files)\n", info.PoolDir, info.PoolFiles)
	}
	_, _ = fmt.Fprintf(r.out, "  Messages: %d\n", info.Messages)
	_, _ = fmt.Fprintf(r.out, "  Embedder: %s [%s]\n", info.EmbedderModel, r.renderStatus(info.EmbedderStatus))
	return nil
}

// RenderJSON writes info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "fallback":
		return r.styles.Warning.Render(status)
	case "offline":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
