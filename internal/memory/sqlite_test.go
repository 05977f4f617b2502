package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RecentIsChronological(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "user", Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}
	_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: "other", Role: "user", Content: "elsewhere"})
	require.NoError(t, err)

	msgs, err := s.Recent(ctx, "u", "c", 3)

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 2", msgs[0].Content)
	assert.Equal(t, "msg 4", msgs[2].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	n, err := s.Count(ctx, "u", "c")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSQLiteStore_EmbeddedNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "user", Content: "old", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "user", Content: "no vector"})
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "assistant", Content: "new", Embedding: []float32{0, 0.5}})
	require.NoError(t, err)

	msgs, err := s.Embedded(ctx, "u", "c", 10)

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "new", msgs[0].Content)
	assert.Equal(t, []float32{0, 0.5}, msgs[0].Embedding)
	assert.Equal(t, "old", msgs[1].Content)
}

func TestSQLiteStore_Summary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Summary(ctx, "u", "c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSummary(ctx, "u", "c", "first"))
	require.NoError(t, s.SetSummary(ctx, "u", "c", "second"))

	summary, ok, err := s.Summary(ctx, "u", "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", summary)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, conv := range []string{"a", "b"} {
		_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: conv, Role: "user", Content: "hello " + conv})
		require.NoError(t, err)
		require.NoError(t, s.SetSummary(ctx, "u", conv, "summary "+conv))
	}
	_, err := s.AddMessage(ctx, Message{UserID: "v", ConversationID: "a", Role: "user", Content: "other user"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, "u", "a"))
	n, _ := s.Count(ctx, "u", "a")
	assert.Equal(t, 0, n)
	n, _ = s.Count(ctx, "u", "b")
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteUser(ctx, "u"))
	n, _ = s.Count(ctx, "u", "b")
	assert.Equal(t, 0, n)
	_, ok, _ := s.Summary(ctx, "u", "b")
	assert.False(t, ok)
	n, _ = s.Count(ctx, "v", "a")
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_RejectsEmptyContent(t *testing.T) {
	s := openTestStore(t)

	_, err := s.AddMessage(context.Background(), Message{UserID: "u", ConversationID: "c", Role: "user", Content: "  "})

	assert.Error(t, err)
}

func TestSQLiteStore_FeedsRetriever(t *testing.T) {
	// Given: a persisted conversation with a summary and an old similar message
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "user", Content: "budget is 5k", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.AddMessage(ctx, Message{UserID: "u", ConversationID: "c", Role: "user", Content: fmt.Sprintf("filler %d", i), Embedding: []float32{0, 1}})
		require.NoError(t, err)
	}
	require.NoError(t, s.SetSummary(ctx, "u", "c", "planning a budget"))

	// When
	snap := NewRetriever(s, fixedEmbedder{vec: []float32{1, 0}}, DefaultOptions()).
		GetMemory(ctx, "what was the budget again", "u", "c")

	// Then
	assert.Equal(t, "planning a budget", snap.Summary)
	assert.Len(t, snap.WorkingWindow, 10)
	require.Len(t, snap.SemanticHits, 1)
	assert.Equal(t, "budget is 5k", snap.SemanticHits[0].Content)
}
