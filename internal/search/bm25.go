package search

import "math"

// BM25Config holds the BM25 free parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// DefaultBM25Config returns k1=1.2, b=0.75.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.2, B: 0.75}
}

// BM25 scores a fixed set of tokenized documents.
type BM25 struct {
	cfg    BM25Config
	tf     []map[string]int
	docLen []int
	df     map[string]int
	avgLen float64
}

// NewBM25 indexes docs, each given as its token list.
func NewBM25(docs [][]string, cfg BM25Config) *BM25 {
	b := &BM25{
		cfg:    cfg,
		tf:     make([]map[string]int, len(docs)),
		docLen: make([]int, len(docs)),
		df:     make(map[string]int),
	}

	total := 0
	for i, doc := range docs {
		counts := make(map[string]int, len(doc))
		for _, t := range doc {
			counts[t]++
		}
		for t := range counts {
			b.df[t]++
		}
		b.tf[i] = counts
		b.docLen[i] = len(doc)
		total += len(doc)
	}
	if len(docs) > 0 {
		b.avgLen = float64(total) / float64(len(docs))
	}
	return b
}

// idf uses the non-negative variant ln(1 + (N - n + 0.5) / (n + 0.5)).
func (b *BM25) idf(term string) float64 {
	n := float64(b.df[term])
	N := float64(len(b.tf))
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// Score returns the BM25 score of document i for the query tokens.
// Repeated query tokens count once.
func (b *BM25) Score(i int, query []string) float64 {
	if i < 0 || i >= len(b.tf) || b.avgLen == 0 {
		return 0
	}

	seen := make(map[string]bool, len(query))
	lenNorm := 1 - b.cfg.B + b.cfg.B*float64(b.docLen[i])/b.avgLen
	var score float64
	for _, term := range query {
		if seen[term] {
			continue
		}
		seen[term] = true

		f := float64(b.tf[i][term])
		if f == 0 {
			continue
		}
		score += b.idf(term) * f * (b.cfg.K1 + 1) / (f + b.cfg.K1*lenNorm)
	}
	return score
}

// ScoreAll scores every document.
func (b *BM25) ScoreAll(query []string) []float64 {
	out := make([]float64, len(b.tf))
	for i := range out {
		out[i] = b.Score(i, query)
	}
	return out
}
