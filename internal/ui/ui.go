// Package ui renders ingestion progress and store status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents an ingestion stage.
type Stage int

const (
	// StageExtract reads text out of the source file.
	StageExtract Stage = iota
	// StageChunk splits the text into chunks.
	StageChunk
	// StageEmbed embeds the chunks.
	StageEmbed
	// StageStore appends to the conversation index.
	StageStore
	// StageComplete indicates ingestion is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageExtract:
		return "Extracting"
	case StageChunk:
		return "Chunking"
	case StageEmbed:
		return "Embedding"
	case StageStore:
		return "Storing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageExtract:
		return "EXTRACT"
	case StageChunk:
		return "CHUNK"
	case StageEmbed:
		return "EMBED"
	case StageStore:
		return "STORE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	File    string
}

// CompletionStats contains final ingestion statistics.
type CompletionStats struct {
	File       string
	Chunks     int
	Stored     int
	Duration   time.Duration
	Err        error
	Embedder   string
	Dimensions int
}

// Renderer displays ingestion progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer) Config {
	return Config{Output: output, NoColor: DetectNoColor()}
}

// NewRenderer returns a TUI renderer for interactive terminals and a
// plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
