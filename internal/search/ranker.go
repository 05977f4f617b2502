package search

import (
	"sort"

	"github.com/Aman-CERP/convorag/internal/embed"
)

// Ranker fuses vector and keyword relevance.
type Ranker struct {
	opts Options
}

// NewRanker creates a ranker. Zero-valued options take their defaults;
// a zero threshold is kept as given.
func NewRanker(opts Options) *Ranker {
	def := DefaultOptions()
	if opts.VectorWeight == 0 && opts.KeywordWeight == 0 {
		opts.VectorWeight, opts.KeywordWeight = def.VectorWeight, def.KeywordWeight
	}
	if opts.VectorCandidates <= 0 {
		opts.VectorCandidates = def.VectorCandidates
	}
	if opts.KeywordCandidates <= 0 {
		opts.KeywordCandidates = def.KeywordCandidates
	}
	if opts.BM25.K1 == 0 && opts.BM25.B == 0 {
		opts.BM25 = def.BM25
	}
	return &Ranker{opts: opts}
}

// Options returns the effective options.
func (r *Ranker) Options() Options { return r.opts }

// Rank returns up to topK corpus entries whose fused score exceeds the
// threshold, best first.
//
// The candidate set is the union of the vector search hits and the top
// keyword matches. Each score family is min-max normalized over exactly
// that union before weighting. A zero query vector disables the vector
// family.
func (r *Ranker) Rank(query string, qvec []float32, corpus Corpus, topK int) []Result {
	n := corpus.Len()
	if n == 0 || topK <= 0 {
		return nil
	}

	useVector := !embed.IsZero(qvec)
	// Vector hits are scored against the unit query; keyword-only
	// candidates must be too.
	qvec = embed.Normalize(qvec)

	vecScore := make(map[int]float64)
	var union []int
	inUnion := make(map[int]bool)
	add := func(i int) {
		if !inUnion[i] {
			inUnion[i] = true
			union = append(union, i)
		}
	}

	if useVector {
		for _, h := range corpus.Nearest(qvec, min(n, r.opts.VectorCandidates)) {
			vecScore[h.Index] = h.Score
			add(h.Index)
		}
	}

	keyword := r.keywordScores(query, corpus)
	for _, i := range topKeyword(keyword, r.opts.KeywordCandidates) {
		add(i)
	}
	if len(union) == 0 {
		return nil
	}

	vecRaw := make([]float64, len(union))
	kwRaw := make([]float64, len(union))
	for j, i := range union {
		kwRaw[j] = keyword[i]
		if !useVector {
			continue
		}
		if s, ok := vecScore[i]; ok {
			vecRaw[j] = s
		} else {
			// Surfaced by keywords only; score it exactly.
			vecRaw[j] = embed.Dot(qvec, corpus.Vector(i))
		}
	}

	vecNorm := make([]float64, len(union))
	if useVector {
		vecNorm = MinMax(vecRaw)
	}
	kwNorm := MinMax(kwRaw)

	results := make([]Result, 0, len(union))
	for j, i := range union {
		fused := r.opts.VectorWeight*vecNorm[j] + r.opts.KeywordWeight*kwNorm[j]
		if fused <= r.opts.Threshold {
			continue
		}
		results = append(results, Result{
			Index:   i,
			Text:    corpus.Text(i),
			Score:   fused,
			Vector:  vecNorm[j],
			Keyword: kwNorm[j],
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Index < results[b].Index
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func (r *Ranker) keywordScores(query string, corpus Corpus) []float64 {
	qTokens := Tokenize(query)
	n := corpus.Len()
	if len(qTokens) == 0 {
		return make([]float64, n)
	}

	docs := make([][]string, n)
	tc, cached := corpus.(TokenizedCorpus)
	for i := 0; i < n; i++ {
		if cached {
			docs[i] = tc.Tokens(i)
		} else {
			docs[i] = Tokenize(corpus.Text(i))
		}
	}
	return NewBM25(docs, r.opts.BM25).ScoreAll(qTokens)
}

// topKeyword returns the indices of the k best positive scores, best first.
func topKeyword(scores []float64, k int) []int {
	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}

// Texts extracts result texts in rank order.
func Texts(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text
	}
	return out
}
