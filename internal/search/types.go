// Package search ranks a conversation's chunks against a query by fusing
// normalized vector similarity with normalized BM25 keyword relevance.
package search

// Default ranking parameters.
const (
	DefaultVectorWeight      = 0.6
	DefaultKeywordWeight     = 0.4
	DefaultThreshold         = 0.25
	DefaultVectorCandidates  = 50
	DefaultKeywordCandidates = 50
)

// Corpus is the candidate set a Ranker searches. Vectors are unit length;
// Nearest returns up to k hits by inner product, best first.
type Corpus interface {
	Len() int
	Text(i int) string
	Vector(i int) []float32
	Nearest(q []float32, k int) []Hit
}

// TokenizedCorpus is implemented by corpora that cache the tokens of each
// entry, sparing the ranker a re-tokenization per query.
type TokenizedCorpus interface {
	Corpus
	Tokens(i int) []string
}

// Hit is a raw similarity result.
type Hit struct {
	Index int
	Score float64
}

// Result is a ranked candidate. Vector and Keyword are the normalized
// per-family scores that produced Score.
type Result struct {
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Vector  float64 `json:"vector_score"`
	Keyword float64 `json:"keyword_score"`
}

// Options configures a Ranker.
type Options struct {
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// Threshold is the fused score a result must exceed.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// VectorCandidates caps the vector search depth.
	VectorCandidates int `yaml:"vector_candidates" json:"vector_candidates"`

	// KeywordCandidates caps how many top keyword matches join the union.
	KeywordCandidates int `yaml:"keyword_candidates" json:"keyword_candidates"`

	BM25 BM25Config `yaml:"bm25" json:"bm25"`
}

// DefaultOptions returns the default ranking options.
func DefaultOptions() Options {
	return Options{
		VectorWeight:      DefaultVectorWeight,
		KeywordWeight:     DefaultKeywordWeight,
		Threshold:         DefaultThreshold,
		VectorCandidates:  DefaultVectorCandidates,
		KeywordCandidates: DefaultKeywordCandidates,
		BM25:              DefaultBM25Config(),
	}
}
