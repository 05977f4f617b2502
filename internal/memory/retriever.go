package memory

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/convorag/internal/embed"
)

// Retriever builds memory snapshots. Safe for concurrent use.
type Retriever struct {
	store    MessageStore
	embedder QueryEmbedder
	opts     Options
	closure  closureDetector
}

// NewRetriever creates a retriever over store.
func NewRetriever(store MessageStore, embedder QueryEmbedder, opts Options) *Retriever {
	def := DefaultOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = def.PoolSize
	}
	if opts.MinScore <= 0 {
		opts.MinScore = def.MinScore
	}
	if opts.MaxSemanticHits <= 0 {
		opts.MaxSemanticHits = def.MaxSemanticHits
	}
	if opts.ClosureMaxWords <= 0 {
		opts.ClosureMaxWords = def.ClosureMaxWords
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		opts:     opts,
		closure:  newClosureDetector(opts.ClosureTerms, opts.ClosureMaxWords),
	}
}

// GetMemory returns the memory snapshot for query. A failing tier is left
// empty; the call itself never fails.
func (r *Retriever) GetMemory(ctx context.Context, query, userID, convID string) Snapshot {
	var snap Snapshot
	snap.Summary, snap.HasSummary = r.summary(ctx, userID, convID)

	if r.closure.IsClosure(query) {
		slog.Debug("closure query, returning summary only",
			slog.String("user", userID),
			slog.String("conversation", convID))
		snap.Closure = true
		return snap
	}

	snap.WorkingWindow = r.working(ctx, userID, convID)
	snap.SemanticHits = r.semantic(ctx, query, userID, convID, snap.WorkingWindow)
	return snap
}

func (r *Retriever) summary(ctx context.Context, userID, convID string) (string, bool) {
	s, ok, err := r.store.Summary(ctx, userID, convID)
	if err != nil {
		slog.Warn("summary tier failed", slog.String("error", err.Error()))
		return "", false
	}
	return s, ok
}

func (r *Retriever) working(ctx context.Context, userID, convID string) []Message {
	msgs, err := r.store.Recent(ctx, userID, convID, r.opts.WindowSize)
	if err != nil {
		slog.Warn("working tier failed", slog.String("error", err.Error()))
		return nil
	}
	return msgs
}

func (r *Retriever) semantic(ctx context.Context, query, userID, convID string, window []Message) []ScoredMessage {
	qv := r.embedder.Embed(ctx, query)
	if embed.IsZero(qv) {
		return nil
	}

	pool, err := r.store.Embedded(ctx, userID, convID, r.opts.PoolSize)
	if err != nil {
		slog.Warn("semantic tier failed", slog.String("error", err.Error()))
		return nil
	}

	inWindow := make(map[string]bool, len(window))
	for _, m := range window {
		inWindow[m.ID] = true
	}

	var hits []ScoredMessage
	for _, m := range pool {
		if inWindow[m.ID] || len(m.Embedding) != len(qv) || embed.IsZero(m.Embedding) {
			continue
		}
		if score := embed.Cosine(qv, m.Embedding); score >= r.opts.MinScore {
			hits = append(hits, ScoredMessage{Message: m, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > r.opts.MaxSemanticHits {
		hits = hits[:r.opts.MaxSemanticHits]
	}
	return hits
}
