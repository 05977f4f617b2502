package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory MessageStore; messages are in chronological order.
type memStore struct {
	msgs       []Message
	summary    string
	hasSummary bool
	failRecent bool
	failPool   bool
}

func (s *memStore) Recent(_ context.Context, _, _ string, n int) ([]Message, error) {
	if s.failRecent {
		return nil, errors.New("recent unavailable")
	}
	if len(s.msgs) <= n {
		return append([]Message(nil), s.msgs...), nil
	}
	return append([]Message(nil), s.msgs[len(s.msgs)-n:]...), nil
}

func (s *memStore) Embedded(_ context.Context, _, _ string, n int) ([]Message, error) {
	if s.failPool {
		return nil, errors.New("pool unavailable")
	}
	var out []Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < n; i-- {
		if len(s.msgs[i].Embedding) > 0 {
			out = append(out, s.msgs[i])
		}
	}
	return out, nil
}

func (s *memStore) Summary(context.Context, string, string) (string, bool, error) {
	return s.summary, s.hasSummary, nil
}

type fixedEmbedder struct{ vec []float32 }

func (e fixedEmbedder) Embed(context.Context, string) []float32 { return e.vec }

// at returns a 2-d unit vector with cosine c against (1,0).
func at(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

// history builds n messages; message i has embedding at(scores[i]) when
// scores has an entry for it.
func history(n int, scores map[int]float64) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{ID: fmt.Sprintf("m%02d", i), Role: "user", Content: fmt.Sprintf("message %d", i)}
		if s, ok := scores[i]; ok {
			msgs[i].Embedding = at(s)
		}
	}
	return msgs
}

func TestGetMemory_ClosureShortCircuit(t *testing.T) {
	// Given: a conversation with history and a summary
	store := &memStore{msgs: history(20, map[int]float64{0: 0.99}), summary: "user planned a trip", hasSummary: true}
	r := NewRetriever(store, fixedEmbedder{vec: []float32{1, 0}}, DefaultOptions())

	// When: the user says thanks
	snap := r.GetMemory(context.Background(), "cảm ơn bạn nhiều", "u", "c")

	// Then: only the summary comes back
	assert.True(t, snap.Closure)
	assert.Empty(t, snap.SemanticHits)
	assert.Empty(t, snap.WorkingWindow)
	assert.Equal(t, "user planned a trip", snap.Summary)
	assert.True(t, snap.HasSummary)
}

func TestGetMemory_WorkingAndSemanticTiers(t *testing.T) {
	// Given: 20 messages; old ones with varied similarity, one recent
	// message similar enough to recall but inside the window
	scores := map[int]float64{0: 0.9, 1: 0.44, 2: 0.45, 3: 0.7, 4: 0.6, 5: 0.5, 6: 0.8, 7: 0.46, 15: 0.99}
	store := &memStore{msgs: history(20, scores)}
	r := NewRetriever(store, fixedEmbedder{vec: []float32{1, 0}}, DefaultOptions())

	// When
	snap := r.GetMemory(context.Background(), "what did we decide about the budget", "u", "c")

	// Then: the window is the last 10 in order
	require.Len(t, snap.WorkingWindow, 10)
	assert.Equal(t, "m10", snap.WorkingWindow[0].ID)
	assert.Equal(t, "m19", snap.WorkingWindow[9].ID)

	// And: the top 5 older messages at or above 0.45, best first
	var ids []string
	for _, h := range snap.SemanticHits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"m00", "m06", "m03", "m04", "m05"}, ids)
	assert.False(t, snap.HasSummary)
	assert.False(t, snap.Closure)
}

func TestGetMemory_MinScoreIsInclusive(t *testing.T) {
	// Given: one old message at exactly the minimum score and one just below
	store := &memStore{msgs: history(12, map[int]float64{1: 0.59})}
	store.msgs[0].Embedding = []float32{3, 4}
	opts := DefaultOptions()
	opts.MinScore = 0.6
	r := NewRetriever(store, fixedEmbedder{vec: []float32{1, 0}}, opts)

	snap := r.GetMemory(context.Background(), "recall the first message please", "u", "c")

	require.Len(t, snap.SemanticHits, 1)
	assert.Equal(t, "m00", snap.SemanticHits[0].ID)
	assert.Equal(t, 0.6, snap.SemanticHits[0].Score)
}

func TestGetMemory_TierFailuresDegrade(t *testing.T) {
	tests := []struct {
		name         string
		store        *memStore
		vec          []float32
		wantWindow   int
		wantSemantic int
	}{
		{"zero query vector", &memStore{msgs: history(12, map[int]float64{0: 0.9})}, []float32{0, 0}, 10, 0},
		{"pool failure", &memStore{msgs: history(12, map[int]float64{0: 0.9}), failPool: true}, []float32{1, 0}, 10, 0},
		{"window failure", &memStore{msgs: history(12, map[int]float64{0: 0.9}), failRecent: true}, []float32{1, 0}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.store, fixedEmbedder{vec: tt.vec}, DefaultOptions())
			snap := r.GetMemory(context.Background(), "tell me about the earlier plan", "u", "c")
			assert.Len(t, snap.WorkingWindow, tt.wantWindow)
			assert.Len(t, snap.SemanticHits, tt.wantSemantic)
		})
	}
}

func TestIsClosure(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"cảm ơn bạn nhiều", true},
		{"Cảm ơn!", true},
		{"Thanks!", true},
		{"ok bye", true},
		{"tạm biệt nhé", true},
		{"cảm ơn", true},
		{"ca\u0309m o\u031bn", true},
		{"thanks, now explain the second chapter in detail", false},
		{"what is the thanksgiving schedule", false},
		{"explain chunk overlap", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsClosure(tt.query))
		})
	}
}

func TestSnapshot_Render(t *testing.T) {
	snap := Snapshot{
		Summary:       "Discussed invoices.",
		HasSummary:    true,
		SemanticHits:  []ScoredMessage{{Message: Message{Role: "user", Content: "invoice due?"}, Score: 0.8}},
		WorkingWindow: []Message{{Role: "assistant", Content: "yes, monthly"}},
	}

	out := snap.Render()

	assert.Equal(t, "## Summary\nDiscussed invoices.\n\n## Related earlier messages\nuser: invoice due?\n\n## Recent messages\nassistant: yes, monthly\n", out)
	assert.Empty(t, Snapshot{}.Render())
}
