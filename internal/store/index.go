package store

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/convorag/internal/chunk"
	"github.com/Aman-CERP/convorag/internal/embed"
	"github.com/Aman-CERP/convorag/internal/search"
)

// ConversationIndex owns one HNSW graph and the chunk list it indexes.
// Row i of the graph is chunks[i].
type ConversationIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	chunks []chunk.Chunk
	tokens [][]string
	dims   int
	cfg    HNSWConfig

	// onDisk is set once the index has been read from or written to disk.
	onDisk bool
}

// NewConversationIndex creates an empty index.
func NewConversationIndex(cfg HNSWConfig) *ConversationIndex {
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultEfSearch
	}
	if cfg.ExactSearchLimit <= 0 {
		cfg.ExactSearchLimit = DefaultExactSearchLimit
	}
	return &ConversationIndex{graph: newGraph(cfg), cfg: cfg}
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	// Vectors are unit length, so cosine distance orders like inner product.
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Len returns the number of chunks.
func (c *ConversationIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// VectorCount returns the number of vectors in the graph.
func (c *ConversationIndex) VectorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Len()
}

// Dimensions returns the vector dimension, or 0 for an empty index.
func (c *ConversationIndex) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

// Chunks returns a copy of the chunk list.
func (c *ConversationIndex) Chunks() []chunk.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chunk.Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Text returns chunk i's text.
func (c *ConversationIndex) Text(i int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chunks[i].Text
}

// Vector returns the stored unit vector for row i, or nil.
func (c *ConversationIndex) Vector(i int) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return corpusView{c}.Vector(i)
}

// HasSource reports whether any chunk carries the given source label.
func (c *ConversationIndex) HasSource(label string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.chunks {
		if ch.SourceLabel == label {
			return true
		}
	}
	return false
}

// SourceLabels returns the distinct source labels in insertion order.
func (c *ConversationIndex) SourceLabels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, ch := range c.chunks {
		if !seen[ch.SourceLabel] {
			seen[ch.SourceLabel] = true
			out = append(out, ch.SourceLabel)
		}
	}
	return out
}

// Rank runs the hybrid ranker over this index under a read lock.
func (c *ConversationIndex) Rank(r *search.Ranker, query string, qvec []float32, topK int) []search.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return r.Rank(query, qvec, corpusView{c}, topK)
}

// Nearest returns up to k rows by inner product with q.
func (c *ConversationIndex) Nearest(q []float32, k int) []search.Hit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return corpusView{c}.Nearest(q, k)
}

// parityOK reports whether graph and chunk list agree. Caller holds mu.
func (c *ConversationIndex) parityOK() bool {
	return c.graph.Len() == len(c.chunks)
}

// reset discards all state. Caller holds mu for writing.
func (c *ConversationIndex) reset() {
	c.graph = newGraph(c.cfg)
	c.chunks = nil
	c.tokens = nil
	c.dims = 0
}

// add appends normalized vectors under consecutive keys. Caller holds mu for
// writing and has checked dimensions.
func (c *ConversationIndex) add(chunks []chunk.Chunk, vectors [][]float32) {
	base := uint64(len(c.chunks))
	nodes := make([]hnsw.Node[uint64], len(chunks))
	for i := range chunks {
		nodes[i] = hnsw.MakeNode(base+uint64(i), embed.Normalize(vectors[i]))
	}
	c.graph.Add(nodes...)
	for _, ch := range chunks {
		c.chunks = append(c.chunks, ch)
		c.tokens = append(c.tokens, search.Tokenize(ch.Text))
	}
	if c.dims == 0 && len(vectors) > 0 {
		c.dims = len(vectors[0])
	}
}

// corpusView exposes the index to the ranker without locking; the caller
// already holds mu.
type corpusView struct{ c *ConversationIndex }

var (
	_ search.TokenizedCorpus = corpusView{}
	_ search.Corpus          = (*ConversationIndex)(nil)
)

func (v corpusView) Len() int { return len(v.c.chunks) }

func (v corpusView) Text(i int) string { return v.c.chunks[i].Text }

func (v corpusView) Tokens(i int) []string { return v.c.tokens[i] }

func (v corpusView) Vector(i int) []float32 {
	vec, ok := v.c.graph.Lookup(uint64(i))
	if !ok {
		return nil
	}
	return vec
}

func (v corpusView) Nearest(q []float32, k int) []search.Hit {
	n := len(v.c.chunks)
	if n == 0 || k <= 0 || len(q) != v.c.dims || embed.IsZero(q) {
		return nil
	}
	if n <= v.c.cfg.ExactSearchLimit {
		return search.ExactNearest(q, k, n, v.Vector)
	}

	// EfSearch is fixed at construction; results beyond it are truncated.
	q = embed.Normalize(q)
	nodes := v.c.graph.Search(q, k)
	hits := make([]search.Hit, 0, len(nodes))
	for _, node := range nodes {
		if int(node.Key) >= n {
			continue
		}
		hits = append(hits, search.Hit{Index: int(node.Key), Score: embed.Dot(q, node.Value)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	return hits
}
