package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per stage change (for CI and pipes).
type PlainRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last ProgressEvent
	seen bool
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress implements Renderer. Embedding progress is printed per
// batch; other stages once.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen && event == r.last {
		return
	}
	r.seen = true
	r.last = event

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d %s\n", event.Stage.Icon(), event.Current, event.Total, event.File)
	default:
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.File)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Err != nil {
		_, _ = fmt.Fprintf(r.out, "ERROR: %s: %v\n", stats.File, stats.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "Complete: %s, %d/%d chunks stored in %s\n",
		stats.File, stats.Stored, stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Embedder != "" {
		_, _ = fmt.Fprintf(r.out, "Embedder: %s (%d dims)\n", stats.Embedder, stats.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

var _ Renderer = (*PlainRenderer)(nil)
