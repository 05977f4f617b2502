package search

import (
	"sort"

	"github.com/Aman-CERP/convorag/internal/embed"
)

// FlatCorpus is an in-memory corpus searched exhaustively.
type FlatCorpus struct {
	texts   []string
	vectors [][]float32
	tokens  [][]string
}

var _ TokenizedCorpus = (*FlatCorpus)(nil)

// NewFlatCorpus builds a corpus. Vectors are normalized to unit length;
// a nil or zero vector never matches a vector search.
func NewFlatCorpus(texts []string, vectors [][]float32) *FlatCorpus {
	c := &FlatCorpus{}
	for i, t := range texts {
		var v []float32
		if i < len(vectors) {
			v = vectors[i]
		}
		c.Add(t, v)
	}
	return c
}

// Add appends one entry.
func (c *FlatCorpus) Add(text string, vec []float32) {
	c.texts = append(c.texts, text)
	c.vectors = append(c.vectors, embed.Normalize(vec))
	c.tokens = append(c.tokens, Tokenize(text))
}

func (c *FlatCorpus) Len() int { return len(c.texts) }

func (c *FlatCorpus) Text(i int) string { return c.texts[i] }

func (c *FlatCorpus) Vector(i int) []float32 { return c.vectors[i] }

func (c *FlatCorpus) Tokens(i int) []string { return c.tokens[i] }

// Nearest scores every entry by inner product with q.
func (c *FlatCorpus) Nearest(q []float32, k int) []Hit {
	return ExactNearest(q, k, c.Len(), c.Vector)
}

// ExactNearest ranks n vectors, fetched through vec, by inner product with
// q. Zero vectors are skipped. Ties keep index order.
func ExactNearest(q []float32, k, n int, vec func(int) []float32) []Hit {
	if k <= 0 || embed.IsZero(q) {
		return nil
	}
	q = embed.Normalize(q)
	hits := make([]Hit, 0, n)
	for i := 0; i < n; i++ {
		v := vec(i)
		if len(v) != len(q) || embed.IsZero(v) {
			continue
		}
		hits = append(hits, Hit{Index: i, Score: embed.Dot(q, v)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
