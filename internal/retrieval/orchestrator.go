// Package retrieval wires chunking, embedding, the conversation index store,
// document discovery and memory into the two query paths: document context
// for a query, and conversational memory.
package retrieval

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/convorag/internal/chunk"
	"github.com/Aman-CERP/convorag/internal/discovery"
	"github.com/Aman-CERP/convorag/internal/embed"
	cerrors "github.com/Aman-CERP/convorag/internal/errors"
	"github.com/Aman-CERP/convorag/internal/extract"
	"github.com/Aman-CERP/convorag/internal/memory"
	"github.com/Aman-CERP/convorag/internal/search"
	"github.com/Aman-CERP/convorag/internal/store"
)

const (
	// Separator joins retrieved chunks in GetContext output.
	Separator = "\n\n---\n\n"

	DefaultTopK          = 5
	DefaultDiscoveryTopK = 3

	// embedBatchSize is how many chunks are embedded between progress
	// callbacks.
	embedBatchSize = 32
)

// Stage names an ingestion step reported to a ProgressFunc.
type Stage string

const (
	StageExtract Stage = "extract"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageStore   Stage = "store"
	StageDone    Stage = "done"
)

// ProgressFunc receives ingestion progress. done/total count chunks for
// StageEmbed and are 0/0 otherwise.
type ProgressFunc func(stage Stage, done, total int)

// MessageLog persists chat messages for the memory tier.
type MessageLog interface {
	AddMessage(ctx context.Context, m memory.Message) (memory.Message, error)
	DeleteConversation(ctx context.Context, userID, convID string) error
	DeleteUser(ctx context.Context, userID string) error
}

// Deps are the collaborators an Orchestrator owns. Discovery, Memory and
// Messages are optional.
type Deps struct {
	Store     *store.IndexStore
	Embedder  *embed.Client
	Ranker    *search.Ranker
	Discovery *discovery.Index
	Memory    *memory.Retriever
	Messages  MessageLog
}

// Config tunes the orchestrator.
type Config struct {
	TopK          int
	DiscoveryTopK int
	// AutoLoad ingests discovered pool files into the conversation before
	// ranking.
	AutoLoad bool
	Chunk    chunk.Options
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TopK:          DefaultTopK,
		DiscoveryTopK: DefaultDiscoveryTopK,
		AutoLoad:      true,
		Chunk:         chunk.DefaultOptions(),
	}
}

// Orchestrator answers context and memory queries. Safe for concurrent use.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	progress ProgressFunc
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.DiscoveryTopK <= 0 {
		cfg.DiscoveryTopK = DefaultDiscoveryTopK
	}
	if cfg.Chunk.Size <= 0 {
		cfg.Chunk = chunk.DefaultOptions()
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// SetProgress installs an ingestion progress callback.
func (o *Orchestrator) SetProgress(fn ProgressFunc) { o.progress = fn }

func (o *Orchestrator) report(stage Stage, done, total int) {
	if o.progress != nil {
		o.progress(stage, done, total)
	}
}

// GetContext returns the chunks relevant to query joined by Separator. An
// empty string means nothing relevant was found.
func (o *Orchestrator) GetContext(ctx context.Context, query, userID, convID string) string {
	results := o.Search(ctx, query, userID, convID, o.cfg.TopK)
	return strings.Join(search.Texts(results), Separator)
}

// Search is GetContext with scored results.
func (o *Orchestrator) Search(ctx context.Context, query, userID, convID string, topK int) []search.Result {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if topK <= 0 {
		topK = o.cfg.TopK
	}
	start := time.Now()

	if o.cfg.AutoLoad && o.deps.Discovery != nil {
		o.autoLoad(ctx, query, userID, convID)
	}

	idx, _ := o.deps.Store.Load(ctx, userID, convID)
	if idx.Len() == 0 {
		return nil
	}

	qvec := o.deps.Embedder.Embed(ctx, query)
	results := idx.Rank(o.deps.Ranker, query, qvec, topK)

	slog.Debug("context retrieved",
		slog.String("user", userID),
		slog.String("conversation", convID),
		slog.Int("chunks", idx.Len()),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results
}

// autoLoad ingests discovered pool files the conversation does not hold
// yet. Failures are logged and skipped.
func (o *Orchestrator) autoLoad(ctx context.Context, query, userID, convID string) {
	paths := o.deps.Discovery.FindRelevant(ctx, query, o.cfg.DiscoveryTopK)
	if len(paths) == 0 {
		return
	}
	idx, _ := o.deps.Store.Load(ctx, userID, convID)
	for _, path := range paths {
		if idx.HasSource(sourceLabel(path)) {
			continue
		}
		n, err := o.IngestFile(ctx, userID, convID, path)
		if err != nil {
			slog.Warn("auto-load failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("auto-loaded pool file",
			slog.String("path", path),
			slog.String("conversation", convID),
			slog.Int("chunks", n))
	}
}

func sourceLabel(path string) string { return filepath.Base(path) }

// IngestFile extracts, chunks, embeds and stores a document. It returns the
// number of chunks stored.
func (o *Orchestrator) IngestFile(ctx context.Context, userID, convID, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, cerrors.New(cerrors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", path)
	}
	if extract.Detect(path) == extract.Unsupported {
		return 0, cerrors.New(cerrors.ErrCodeUnsupportedFormat, "unsupported file format", nil).
			WithDetail("path", path).
			WithSuggestion("Supported: pdf, docx, xlsx, csv, txt, md and common source files")
	}

	o.report(StageExtract, 0, 0)
	text := extract.File(path)
	if strings.TrimSpace(text) == "" {
		return 0, cerrors.New(cerrors.ErrCodeNoTextExtracted, "no text extracted", nil).WithDetail("path", path)
	}
	return o.IngestText(ctx, userID, convID, sourceLabel(path), text)
}

// IngestText chunks, embeds and stores text under the given source label.
// It returns the number of chunks stored; chunks whose embedding failed are
// not counted.
func (o *Orchestrator) IngestText(ctx context.Context, userID, convID, label, text string) (int, error) {
	if err := store.ValidateID("user", userID); err != nil {
		return 0, err
	}
	if err := store.ValidateID("conversation", convID); err != nil {
		return 0, err
	}
	start := time.Now()

	o.report(StageChunk, 0, 0)
	chunks := chunk.Build(text, label, o.cfg.Chunk)
	if len(chunks) == 0 {
		return 0, cerrors.New(cerrors.ErrCodeNoTextExtracted, "no text extracted", nil).WithDetail("source", label)
	}

	vectors := o.embedChunks(ctx, chunks)

	o.report(StageStore, 0, 0)
	if err := o.deps.Store.Append(ctx, userID, convID, chunks, vectors); err != nil {
		return 0, err
	}

	stored := 0
	for _, v := range vectors {
		if !embed.IsZero(v) {
			stored++
		}
	}
	o.report(StageDone, stored, len(chunks))

	slog.Info("ingested",
		slog.String("user", userID),
		slog.String("conversation", convID),
		slog.String("source", label),
		slog.Int("chunks", len(chunks)),
		slog.Int("stored", stored),
		slog.Duration("duration", time.Since(start)))
	return stored, nil
}

// embedChunks embeds in batches so progress can be reported. Order matches
// chunks.
func (o *Orchestrator) embedChunks(ctx context.Context, chunks []chunk.Chunk) [][]float32 {
	vectors := make([][]float32, 0, len(chunks))
	o.report(StageEmbed, 0, len(chunks))
	for startIdx := 0; startIdx < len(chunks); startIdx += embedBatchSize {
		end := min(startIdx+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-startIdx)
		for _, c := range chunks[startIdx:end] {
			texts = append(texts, c.Text)
		}
		vectors = append(vectors, o.deps.Embedder.EmbedBatch(ctx, texts)...)
		o.report(StageEmbed, end, len(chunks))
	}
	return vectors
}

// RecordMessage embeds and stores a chat message for later memory recall.
func (o *Orchestrator) RecordMessage(ctx context.Context, userID, convID, role, content string) (memory.Message, error) {
	if o.deps.Messages == nil {
		return memory.Message{}, cerrors.New(cerrors.ErrCodeMessageStore, "message store not configured", nil)
	}
	if err := store.ValidateID("user", userID); err != nil {
		return memory.Message{}, err
	}
	if err := store.ValidateID("conversation", convID); err != nil {
		return memory.Message{}, err
	}

	m := memory.Message{UserID: userID, ConversationID: convID, Role: role, Content: content}
	if v := o.deps.Embedder.Embed(ctx, content); !embed.IsZero(v) {
		m.Embedding = v
	}
	return o.deps.Messages.AddMessage(ctx, m)
}

// GetMemory returns the conversation's memory snapshot for query.
func (o *Orchestrator) GetMemory(ctx context.Context, query, userID, convID string) memory.Snapshot {
	if o.deps.Memory == nil {
		return memory.Snapshot{}
	}
	return o.deps.Memory.GetMemory(ctx, query, userID, convID)
}

// Cleanup deletes a conversation's index and messages.
func (o *Orchestrator) Cleanup(ctx context.Context, userID, convID string) error {
	if err := o.deps.Store.Cleanup(ctx, userID, convID); err != nil {
		return err
	}
	if o.deps.Messages != nil {
		return o.deps.Messages.DeleteConversation(ctx, userID, convID)
	}
	return nil
}

// CleanupUser deletes every conversation of a user.
func (o *Orchestrator) CleanupUser(ctx context.Context, userID string) error {
	if err := o.deps.Store.CleanupUser(ctx, userID); err != nil {
		return err
	}
	if o.deps.Messages != nil {
		return o.deps.Messages.DeleteUser(ctx, userID)
	}
	return nil
}

// Discovery returns the discovery index, or nil.
func (o *Orchestrator) Discovery() *discovery.Index { return o.deps.Discovery }

// Store returns the conversation index store.
func (o *Orchestrator) Store() *store.IndexStore { return o.deps.Store }
