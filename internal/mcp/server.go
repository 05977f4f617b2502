package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/convorag/internal/retrieval"
	"github.com/Aman-CERP/convorag/internal/search"
	"github.com/Aman-CERP/convorag/internal/store"
	"github.com/Aman-CERP/convorag/pkg/version"
)

// ServerName is the implementation name reported to clients.
const ServerName = "convorag"

// Server exposes the retrieval orchestrator as MCP tools.
type Server struct {
	mcp    *mcp.Server
	orch   *retrieval.Orchestrator
	logger *slog.Logger

	resMu     sync.Mutex
	resources map[string]bool // registered pool resource URIs
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{"get_context", "Returns the document chunks of a conversation most relevant to a query, joined into one block of prompt context. Relevant files from the shared document pool are ingested first."},
	{"search_context", "Like get_context but returns each ranked chunk with its fused, vector and keyword scores."},
	{"get_memory", "Returns the conversation memory for the latest user message: summary, related earlier messages and the recent message window."},
	{"ingest_file", "Extracts, chunks, embeds and stores a document (pdf, docx, xlsx, csv, text or source) in a conversation's index."},
	{"ingest_text", "Chunks, embeds and stores raw text in a conversation's index under a source label."},
	{"record_message", "Stores a chat message so later get_memory calls can recall it."},
	{"discover_files", "Finds files in the shared document pool whose name and opening text match a query."},
	{"cleanup_conversation", "Deletes a conversation's index and messages, or every conversation of a user when conversation_id is empty."},
}

// NewServer creates an MCP server for orch.
func NewServer(orch *retrieval.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	s := &Server{
		orch:      orch,
		logger:    slog.Default(),
		resources: make(map[string]bool),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func (s *Server) registerTools() {
	desc := make(map[string]string, len(toolInfos))
	for _, t := range toolInfos {
		desc[t.Name] = t.Description
	}
	tool := func(name string) *mcp.Tool { return &mcp.Tool{Name: name, Description: desc[name]} }

	mcp.AddTool(s.mcp, tool("get_context"), s.getContextHandler)
	mcp.AddTool(s.mcp, tool("search_context"), s.searchContextHandler)
	mcp.AddTool(s.mcp, tool("get_memory"), s.getMemoryHandler)
	mcp.AddTool(s.mcp, tool("ingest_file"), s.ingestFileHandler)
	mcp.AddTool(s.mcp, tool("ingest_text"), s.ingestTextHandler)
	mcp.AddTool(s.mcp, tool("record_message"), s.recordMessageHandler)
	mcp.AddTool(s.mcp, tool("discover_files"), s.discoverHandler)
	mcp.AddTool(s.mcp, tool("cleanup_conversation"), s.cleanupHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(toolInfos)))
}

func validateConversation(userID, convID string) error {
	if err := store.ValidateID("user", userID); err != nil {
		return MapError(err)
	}
	if err := store.ValidateID("conversation", convID); err != nil {
		return MapError(err)
	}
	return nil
}

func requireText(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return NewInvalidParamsError(name + " is required")
	}
	return nil
}

func (s *Server) getContextHandler(ctx context.Context, _ *mcp.CallToolRequest, in ContextInput) (
	*mcp.CallToolResult, ContextOutput, error,
) {
	if err := requireText("query", in.Query); err != nil {
		return nil, ContextOutput{}, err
	}
	if err := validateConversation(in.UserID, in.ConversationID); err != nil {
		return nil, ContextOutput{}, err
	}

	defer s.timed("get_context", in.UserID, in.ConversationID)()
	results := s.orch.Search(ctx, in.Query, in.UserID, in.ConversationID, in.TopK)
	return nil, ContextOutput{Context: strings.Join(search.Texts(results), retrieval.Separator)}, nil
}

func (s *Server) searchContextHandler(ctx context.Context, _ *mcp.CallToolRequest, in ContextInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if err := requireText("query", in.Query); err != nil {
		return nil, SearchOutput{}, err
	}
	if err := validateConversation(in.UserID, in.ConversationID); err != nil {
		return nil, SearchOutput{}, err
	}

	defer s.timed("search_context", in.UserID, in.ConversationID)()
	results := s.orch.Search(ctx, in.Query, in.UserID, in.ConversationID, in.TopK)
	out := SearchOutput{Results: make([]ResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, ResultOutput{
			Text:    r.Text,
			Score:   r.Score,
			Vector:  r.Vector,
			Keyword: r.Keyword,
		})
	}
	return nil, out, nil
}

func (s *Server) getMemoryHandler(ctx context.Context, _ *mcp.CallToolRequest, in MemoryInput) (
	*mcp.CallToolResult, MemoryOutput, error,
) {
	if err := validateConversation(in.UserID, in.ConversationID); err != nil {
		return nil, MemoryOutput{}, err
	}

	snap := s.orch.GetMemory(ctx, in.Query, in.UserID, in.ConversationID)
	out := MemoryOutput{
		Rendered: snap.Render(),
		Summary:  snap.Summary,
		Closure:  snap.Closure,
	}
	for _, h := range snap.SemanticHits {
		out.SemanticHits = append(out.SemanticHits, h.Content)
	}
	for _, m := range snap.WorkingWindow {
		out.WorkingWindow = append(out.WorkingWindow, m.Role+": "+m.Content)
	}
	return nil, out, nil
}

func (s *Server) ingestFileHandler(ctx context.Context, _ *mcp.CallToolRequest, in IngestFileInput) (
	*mcp.CallToolResult, IngestOutput, error,
) {
	if err := requireText("path", in.Path); err != nil {
		return nil, IngestOutput{}, err
	}
	if err := validateConversation(in.UserID, in.ConversationID); err != nil {
		return nil, IngestOutput{}, err
	}

	defer s.timed("ingest_file", in.UserID, in.ConversationID)()
	n, err := s.orch.IngestFile(ctx, in.UserID, in.ConversationID, in.Path)
	if err != nil {
		return nil, IngestOutput{}, MapError(err)
	}
	return nil, IngestOutput{Stored: n}, nil
}

func (s *Server) ingestTextHandler(ctx context.Context, _ *mcp.CallToolRequest, in IngestTextInput) (
	*mcp.CallToolResult, IngestOutput, error,
) {
	if err := requireText("text", in.Text); err != nil {
		return nil, IngestOutput{}, err
	}
	if err := validateConversation(in.UserID, in.ConversationID); err != nil {
		return nil, IngestOutput{}, err
	}
	source := in.Source
	if source == "" {
		source = "text"
	}

	n, err := s.orch.IngestText(ctx, in.UserID, in.ConversationID, source, in.Text)
	if err != nil {
		return nil, IngestOutput{}, MapError(err)
	}
	return nil, IngestOutput{Stored: n}, nil
}

func (s *Server) recordMessageHandler(ctx context.Context, _ *mcp.CallToolRequest, in RecordMessageInput) (
	*mcp.CallToolResult, RecordMessageOutput, error,
) {
	if err := requireText("content", in.Content); err != nil {
		return nil, RecordMessageOutput{}, err
	}
	if in.Role != "user" && in.Role != "assistant" {
		return nil, RecordMessageOutput{}, NewInvalidParamsError("role must be user or assistant")
	}

	m, err := s.orch.RecordMessage(ctx, in.UserID, in.ConversationID, in.Role, in.Content)
	if err != nil {
		return nil, RecordMessageOutput{}, MapError(err)
	}
	return nil, RecordMessageOutput{ID: m.ID, Embedded: len(m.Embedding) > 0}, nil
}

func (s *Server) discoverHandler(ctx context.Context, _ *mcp.CallToolRequest, in DiscoverInput) (
	*mcp.CallToolResult, DiscoverOutput, error,
) {
	if err := requireText("query", in.Query); err != nil {
		return nil, DiscoverOutput{}, err
	}
	out := DiscoverOutput{Files: []FileMatch{}}
	idx := s.orch.Discovery()
	if idx == nil {
		return nil, out, nil
	}
	topK := in.TopK
	if topK <= 0 {
		topK = retrieval.DefaultDiscoveryTopK
	}
	for _, m := range idx.Search(ctx, in.Query, topK) {
		out.Files = append(out.Files, FileMatch{Path: m.Path, Score: m.Score})
	}
	return nil, out, nil
}

func (s *Server) cleanupHandler(ctx context.Context, _ *mcp.CallToolRequest, in CleanupInput) (
	*mcp.CallToolResult, CleanupOutput, error,
) {
	if err := store.ValidateID("user", in.UserID); err != nil {
		return nil, CleanupOutput{}, MapError(err)
	}

	if in.ConversationID == "" {
		if err := s.orch.CleanupUser(ctx, in.UserID); err != nil {
			return nil, CleanupOutput{}, MapError(err)
		}
		return nil, CleanupOutput{Removed: "user " + in.UserID}, nil
	}
	if err := store.ValidateID("conversation", in.ConversationID); err != nil {
		return nil, CleanupOutput{}, MapError(err)
	}
	if err := s.orch.Cleanup(ctx, in.UserID, in.ConversationID); err != nil {
		return nil, CleanupOutput{}, MapError(err)
	}
	return nil, CleanupOutput{Removed: "conversation " + in.ConversationID}, nil
}

// timed logs the duration of a tool call when the returned func runs.
func (s *Server) timed(tool, userID, convID string) func() {
	start := time.Now()
	requestID := generateRequestID()
	s.logger.Debug("tool started",
		slog.String("request_id", requestID),
		slog.String("tool", tool))
	return func() {
		s.logger.Info("tool completed",
			slog.String("request_id", requestID),
			slog.String("tool", tool),
			slog.String("user", userID),
			slog.String("conversation", convID),
			slog.Duration("duration", time.Since(start)))
	}
}

// Serve runs the server on the given transport until ctx is canceled.
// Supported transports are "stdio" and "http" (streamable HTTP on addr).
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	case "http":
		return s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.logger.Info("MCP server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
