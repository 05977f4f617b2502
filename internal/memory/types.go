// Package memory composes the conversational memory handed to a generation
// step: a persisted rolling summary, older messages recalled by similarity,
// and the most recent message window.
package memory

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultWindowSize      = 10
	DefaultPoolSize        = 500
	DefaultMinScore        = 0.45
	DefaultMaxSemanticHits = 5

	// DefaultClosureMaxWords is the exclusive word limit for a closure query.
	DefaultClosureMaxWords = 6
)

// Message is one chat turn.
type Message struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageStore is the message history collaborator.
type MessageStore interface {
	// Recent returns the last n messages in chronological order.
	Recent(ctx context.Context, userID, convID string, n int) ([]Message, error)
	// Embedded returns the most recent n messages that carry an embedding,
	// newest first.
	Embedded(ctx context.Context, userID, convID string, n int) ([]Message, error)
	// Summary returns the rolling summary and whether one is stored.
	Summary(ctx context.Context, userID, convID string) (string, bool, error)
}

// QueryEmbedder embeds a query, returning a zero vector on failure.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) []float32
}

// ScoredMessage is a semantic-tier hit.
type ScoredMessage struct {
	Message
	Score float64 `json:"score"`
}

// Snapshot is the three-tier memory for one query. It is built fresh on
// every call.
type Snapshot struct {
	Summary       string          `json:"summary"`
	HasSummary    bool            `json:"has_summary"`
	SemanticHits  []ScoredMessage `json:"semantic_hits"`
	WorkingWindow []Message       `json:"working_window"`
	Closure       bool            `json:"closure"`
}

// Render formats the snapshot as prompt context: summary, then recalled
// messages, then the recent window.
func (s Snapshot) Render() string {
	var b strings.Builder
	if s.HasSummary && s.Summary != "" {
		b.WriteString("## Summary\n")
		b.WriteString(s.Summary)
		b.WriteString("\n")
	}
	if len(s.SemanticHits) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Related earlier messages\n")
		for _, h := range s.SemanticHits {
			b.WriteString(h.Role + ": " + h.Content + "\n")
		}
	}
	if len(s.WorkingWindow) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Recent messages\n")
		for _, m := range s.WorkingWindow {
			b.WriteString(m.Role + ": " + m.Content + "\n")
		}
	}
	return b.String()
}

// Options tunes the retriever.
type Options struct {
	WindowSize      int
	PoolSize        int
	MinScore        float64
	MaxSemanticHits int
	ClosureMaxWords int
	// ClosureTerms replaces the built-in farewell list when non-empty.
	ClosureTerms []string
}

// DefaultOptions returns the default retriever options.
func DefaultOptions() Options {
	return Options{
		WindowSize:      DefaultWindowSize,
		PoolSize:        DefaultPoolSize,
		MinScore:        DefaultMinScore,
		MaxSemanticHits: DefaultMaxSemanticHits,
		ClosureMaxWords: DefaultClosureMaxWords,
	}
}
