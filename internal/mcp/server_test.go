package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/convorag/internal/discovery"
	"github.com/Aman-CERP/convorag/internal/embed"
	cerrors "github.com/Aman-CERP/convorag/internal/errors"
	"github.com/Aman-CERP/convorag/internal/memory"
	"github.com/Aman-CERP/convorag/internal/retrieval"
	"github.com/Aman-CERP/convorag/internal/search"
	"github.com/Aman-CERP/convorag/internal/store"
)

type fixture struct {
	srv  *Server
	pool string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	st, err := store.NewIndexStore(store.Config{Root: filepath.Join(root, "indexes")})
	require.NoError(t, err)
	msgs, err := memory.OpenSQLiteStore(filepath.Join(root, "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = msgs.Close() })

	pool := filepath.Join(root, "pool")
	require.NoError(t, os.MkdirAll(pool, 0o755))

	client := embed.NewClient(embed.NewStaticEmbedder(256), embed.ClientOptions{})
	cfg := retrieval.DefaultConfig()
	cfg.AutoLoad = false

	orch := retrieval.New(retrieval.Deps{
		Store:     st,
		Embedder:  client,
		Ranker:    search.NewRanker(search.DefaultOptions()),
		Discovery: discovery.New(pool, client, discovery.DefaultOptions()),
		Memory:    memory.NewRetriever(msgs, client, memory.DefaultOptions()),
		Messages:  msgs,
	}, cfg)

	srv, err := NewServer(orch)
	require.NoError(t, err)
	return &fixture{srv: srv, pool: pool}
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestServer_ListTools_OverTransport(t *testing.T) {
	// Given: a server connected to a client in memory
	f := newFixture(t)
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	_, err := f.srv.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: listing tools
	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	// Then: every tool is registered
	var got []string
	for _, tool := range res.Tools {
		got = append(got, tool.Name)
	}
	var want []string
	for _, info := range f.srv.ListTools() {
		want = append(want, info.Name)
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
	assert.Len(t, got, 8)
}

func TestServer_IngestAndGetContext(t *testing.T) {
	// Given: text ingested into a conversation
	f := newFixture(t)
	ctx := context.Background()
	text := "The lighthouse keeper logged every ship that passed the northern cape during the storm season."

	_, ingested, err := f.srv.ingestTextHandler(ctx, nil, IngestTextInput{
		Text: text, Source: "log.txt", UserID: "alice", ConversationID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ingested.Stored)

	// When: asking for context
	_, out, err := f.srv.getContextHandler(ctx, nil, ContextInput{
		Query: "lighthouse keeper ships", UserID: "alice", ConversationID: "c1",
	})

	// Then: the chunk comes back
	require.NoError(t, err)
	assert.Equal(t, text, out.Context)

	_, scored, err := f.srv.searchContextHandler(ctx, nil, ContextInput{
		Query: "lighthouse keeper ships", UserID: "alice", ConversationID: "c1", TopK: 1,
	})
	require.NoError(t, err)
	require.Len(t, scored.Results, 1)
	assert.Greater(t, scored.Results[0].Score, 0.25)
}

func TestServer_InvalidParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty query", func() error {
			_, _, err := f.srv.getContextHandler(ctx, nil, ContextInput{Query: " ", UserID: "u", ConversationID: "c"})
			return err
		}},
		{"bad user id", func() error {
			_, _, err := f.srv.getContextHandler(ctx, nil, ContextInput{Query: "q", UserID: "../etc", ConversationID: "c"})
			return err
		}},
		{"empty conversation", func() error {
			_, _, err := f.srv.getMemoryHandler(ctx, nil, MemoryInput{Query: "q", UserID: "u"})
			return err
		}},
		{"missing path", func() error {
			_, _, err := f.srv.ingestFileHandler(ctx, nil, IngestFileInput{UserID: "u", ConversationID: "c"})
			return err
		}},
		{"bad role", func() error {
			_, _, err := f.srv.recordMessageHandler(ctx, nil, RecordMessageInput{UserID: "u", ConversationID: "c", Role: "system", Content: "x"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var me *MCPError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, ErrCodeInvalidParams, me.Code)
		})
	}
}

func TestServer_IngestFileErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bin := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(bin, []byte{0x89, 0x50}, 0o644))

	_, _, err := f.srv.ingestFileHandler(ctx, nil, IngestFileInput{Path: "/nope/missing.md", UserID: "u", ConversationID: "c"})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeFileNotFound, me.Code)

	_, _, err = f.srv.ingestFileHandler(ctx, nil, IngestFileInput{Path: bin, UserID: "u", ConversationID: "c"})
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeUnsupported, me.Code)
}

func TestServer_RecordAndRecall(t *testing.T) {
	// Given: two recorded messages
	f := newFixture(t)
	ctx := context.Background()
	for i, role := range []string{"user", "assistant"} {
		_, out, err := f.srv.recordMessageHandler(ctx, nil, RecordMessageInput{
			UserID: "u", ConversationID: "c", Role: role, Content: fmt.Sprintf("message %d about tides", i),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, out.ID)
		assert.True(t, out.Embedded)
	}

	// When: fetching memory
	_, mem, err := f.srv.getMemoryHandler(ctx, nil, MemoryInput{Query: "tides", UserID: "u", ConversationID: "c"})

	// Then: both appear in the working window, in order
	require.NoError(t, err)
	assert.False(t, mem.Closure)
	assert.Equal(t, []string{"user: message 0 about tides", "assistant: message 1 about tides"}, mem.WorkingWindow)
	assert.Contains(t, mem.Rendered, "## Recent messages")
}

func TestServer_DiscoverFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, empty, err := f.srv.discoverHandler(ctx, nil, DiscoverInput{Query: "anything"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Files)
	assert.Empty(t, empty.Files)

	body := "Tide tables for the northern harbour, high and low water times."
	require.NoError(t, os.WriteFile(filepath.Join(f.pool, "tide-tables.md"), []byte(body), 0o644))
	require.NoError(t, f.srv.orch.Discovery().Rebuild(ctx))

	// The query matches the embedded filename and summary exactly.
	_, found, err := f.srv.discoverHandler(ctx, nil, DiscoverInput{Query: "tide-tables.md\n" + body})
	require.NoError(t, err)
	require.Len(t, found.Files, 1)
	assert.Equal(t, "tide-tables.md", filepath.Base(found.Files[0].Path))
}

func TestServer_Cleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.srv.ingestTextHandler(ctx, nil, IngestTextInput{Text: "some words here", UserID: "u", ConversationID: "c"})
	require.NoError(t, err)

	_, out, err := f.srv.cleanupHandler(ctx, nil, CleanupInput{UserID: "u", ConversationID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "conversation c", out.Removed)
	_, exists := f.srv.orch.Store().Load(ctx, "u", "c")
	assert.False(t, exists)

	_, out, err = f.srv.cleanupHandler(ctx, nil, CleanupInput{UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, "user u", out.Removed)
}

func TestRegisterPoolResources(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.pool, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\nHarbour opening hours."), 0o644))

	n, err := f.srv.RegisterPoolResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := readPoolFile(path)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "text/markdown", res.Contents[0].MIMEType)
	assert.True(t, strings.HasPrefix(res.Contents[0].Text, "# Notes"))

	_, err = readPoolFile(filepath.Join(f.pool, "missing.md"))
	assert.Error(t, err)
}

func TestRefreshPoolResources_DropsRemovedFiles(t *testing.T) {
	// Given: two pool files registered as resources
	f := newFixture(t)
	ctx := context.Background()
	keep := filepath.Join(f.pool, "keep.md")
	gone := filepath.Join(f.pool, "gone.md")
	require.NoError(t, os.WriteFile(keep, []byte("Ferry timetable for the summer season."), 0o644))
	require.NoError(t, os.WriteFile(gone, []byte("Old harbour fees."), 0o644))
	n, err := f.srv.RegisterPoolResources(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// When: one file is removed and the pool refreshed
	require.NoError(t, os.Remove(gone))
	n, err = f.srv.RefreshPoolResources(ctx)

	// Then: only the remaining file is exposed
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.srv.resources["file://"+keep])
	assert.False(t, f.srv.resources["file://"+gone])

	serverT, clientT := mcp.NewInMemoryTransports()
	_, err = f.srv.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	res, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	assert.Equal(t, "keep.md", res.Resources[0].Name)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", cerrors.ValidationError("bad id", nil), ErrCodeInvalidParams},
		{"file not found", cerrors.New(cerrors.ErrCodeFileNotFound, "file not found", nil), ErrCodeFileNotFound},
		{"unsupported", cerrors.New(cerrors.ErrCodeUnsupportedFormat, "unsupported", nil), ErrCodeUnsupported},
		{"storage", cerrors.StorageError("write failed", nil), ErrCodeIndexUnavailable},
		{"embedding", cerrors.EmbeddingError("down", nil), ErrCodeEmbeddingFailed},
		{"wrapped validation", fmt.Errorf("outer: %w", cerrors.ValidationError("bad", nil)), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := cerrors.New(cerrors.ErrCodeUnsupportedFormat, "unsupported file format", nil).
		WithSuggestion("Supported: pdf, docx")
	assert.Equal(t, "unsupported file format. Supported: pdf, docx", MapError(err).Message)
}

func TestMimeTypeForPath(t *testing.T) {
	assert.Equal(t, "text/markdown", MimeTypeForPath("/a/README.MD"))
	assert.Equal(t, "application/pdf", MimeTypeForPath("x.pdf"))
	assert.Equal(t, "text/plain", MimeTypeForPath("noext"))
	assert.Equal(t, "text/plain", extractedMimeType("report.pdf"))
	assert.Equal(t, "text/csv", extractedMimeType("data.csv"))
}
