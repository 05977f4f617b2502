package search

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unit builds a 2-D unit vector pointing at the given angle-like mix.
func vec(x, y float32) []float32 { return []float32{x, y} }

func TestRank_IdenticalVectorsFollowKeywordOrder(t *testing.T) {
	// Given: identical vectors, differing keyword relevance
	texts := []string{
		"shipping schedule",
		"shipping shipping schedule for shipping",
		"nothing related here",
		"shipping",
	}
	vectors := [][]float32{vec(1, 0), vec(1, 0), vec(1, 0), vec(1, 0)}
	corpus := NewFlatCorpus(texts, vectors)
	bm := NewBM25(tokenizeAll(texts), DefaultBM25Config()).ScoreAll(Tokenize("shipping"))

	// When: ranking
	got := NewRanker(DefaultOptions()).Rank("shipping", vec(1, 0), corpus, 10)

	// Then: the order matches BM25 score order exactly
	require.Len(t, got, 4)
	for i := 0; i+1 < len(got); i++ {
		assert.GreaterOrEqual(t, bm[got[i].Index], bm[got[i+1].Index])
		assert.Equal(t, 1.0, got[i].Vector)
	}
	assert.Equal(t, 2, got[3].Index, "no keyword match ranks last")
}

func TestRank_IdenticalKeywordsFollowVectorOrder(t *testing.T) {
	// Given: no keyword signal, distinct vector similarities
	texts := []string{"aa one", "bb two", "cc three"}
	vectors := [][]float32{vec(0.6, 0.8), vec(1, 0), vec(0.8, 0.6)}
	corpus := NewFlatCorpus(texts, vectors)

	got := NewRanker(DefaultOptions()).Rank("zzz", vec(1, 0), corpus, 10)

	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 0}, indices(got))
	for _, r := range got {
		assert.Equal(t, 1.0, r.Keyword)
	}
}

func TestRank_ThresholdGating(t *testing.T) {
	// Given: one candidate far from the query with no keyword match
	texts := []string{"apple pie recipe", "apple tart", "car engine repair"}
	vectors := [][]float32{vec(1, 0), vec(0.9, 0.43588989), vec(0, 1)}
	corpus := NewFlatCorpus(texts, vectors)
	opts := DefaultOptions()
	opts.Threshold = 0.5

	// When: ranking with a large topK
	got := NewRanker(opts).Rank("apple", vec(1, 0), corpus, 100)

	// Then: nothing at or below the threshold appears
	for _, r := range got {
		assert.Greater(t, r.Score, 0.5)
	}
	assert.NotContains(t, indices(got), 2)
}

func TestRank_KeywordOnlyCandidateJoinsUnion(t *testing.T) {
	// Given: vector search depth 1, the keyword match is not the vector hit
	texts := []string{"general overview", "the secret password is swordfish"}
	vectors := [][]float32{vec(1, 0), vec(0, 1)}
	corpus := NewFlatCorpus(texts, vectors)
	opts := DefaultOptions()
	opts.VectorCandidates = 1

	got := NewRanker(opts).Rank("swordfish", vec(1, 0), corpus, 5)

	assert.Contains(t, indices(got), 1)
}

func TestRank_QueryVectorScaleDoesNotMatter(t *testing.T) {
	// Given: more entries than the vector search depth, and a keyword-only
	// match that is nearly orthogonal to the query
	const n = 60
	texts := make([]string, n)
	vectors := make([][]float32, n)
	for i := 0; i < n-1; i++ {
		c := 1 - float64(i)*0.01
		texts[i] = fmt.Sprintf("note %d", i)
		vectors[i] = vec(float32(c), float32(math.Sqrt(1-c*c)))
	}
	texts[n-1] = "zebra crossing"
	vectors[n-1] = vec(0.2, float32(math.Sqrt(1-0.04)))
	corpus := NewFlatCorpus(texts, vectors)
	r := NewRanker(DefaultOptions())

	// When: ranking with a unit query and the same query scaled by 10
	unitRes := r.Rank("zebra", vec(1, 0), corpus, 5)
	scaled := r.Rank("zebra", vec(10, 0), corpus, 5)

	// Then: both rankings agree and the keyword-only match gets no vector credit
	require.NotEmpty(t, scaled)
	assert.Equal(t, indices(unitRes), indices(scaled))
	assert.Equal(t, 0, scaled[0].Index)
	for _, res := range scaled {
		if res.Index == n-1 {
			assert.InDelta(t, 0.0, res.Vector, 1e-9)
			assert.InDelta(t, 1.0, res.Keyword, 1e-9)
		}
	}
}

func TestRank_ZeroQueryVectorUsesKeywordsOnly(t *testing.T) {
	texts := []string{"budget report", "travel plans", "budget budget forecast"}
	corpus := NewFlatCorpus(texts, [][]float32{vec(1, 0), vec(1, 0), vec(1, 0)})

	got := NewRanker(DefaultOptions()).Rank("budget", []float32{0, 0}, corpus, 5)

	require.NotEmpty(t, got)
	for _, r := range got {
		assert.Equal(t, 0.0, r.Vector)
		assert.NotEqual(t, 1, r.Index)
	}
}

func TestRank_TruncatesAndBreaksTiesByIndex(t *testing.T) {
	texts := make([]string, 6)
	vectors := make([][]float32, 6)
	for i := range texts {
		texts[i] = fmt.Sprintf("same words %d", i)
		vectors[i] = vec(1, 0)
	}
	corpus := NewFlatCorpus(texts, vectors)

	got := NewRanker(DefaultOptions()).Rank("same words", vec(1, 0), corpus, 3)

	assert.Equal(t, []int{0, 1, 2}, indices(got))
}

func TestRank_EmptyInputs(t *testing.T) {
	r := NewRanker(DefaultOptions())
	assert.Empty(t, r.Rank("x", vec(1, 0), NewFlatCorpus(nil, nil), 5))
	assert.Empty(t, r.Rank("x", vec(1, 0), NewFlatCorpus([]string{"x y"}, [][]float32{vec(1, 0)}), 0))
}

func TestExactNearest_SkipsZeroAndMismatched(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 0}, {1, 0, 0}, {0.6, 0.8}}
	hits := ExactNearest(vec(1, 0), 10, len(vectors), func(i int) []float32 { return vectors[i] })

	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Index)
	assert.Equal(t, 3, hits[1].Index)
	assert.InDelta(t, 0.6, hits[1].Score, 1e-6)
}

func tokenizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = Tokenize(t)
	}
	return out
}

func indices(rs []Result) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Index
	}
	return out
}
