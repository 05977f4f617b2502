// Package chunk splits extracted text into ordered, overlapping segments.
package chunk

// Chunk size defaults, measured in characters (runes).
const (
	DefaultSize    = 600
	DefaultOverlap = 100

	// MinChunkChars is the shortest trimmed chunk worth indexing.
	MinChunkChars = 10
)

// Chunk is a retrievable unit of text. Its position in a conversation's
// chunk list is also its row id in the vector index.
type Chunk struct {
	Text        string `json:"text"`
	Ordinal     uint32 `json:"ordinal"`
	SourceLabel string `json:"source"`
}

// Segment is a chunk together with its rune offsets in the source text.
type Segment struct {
	Text  string
	Start int // inclusive
	End   int // exclusive
}

// Options configures chunking.
type Options struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

func (o Options) normalized() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	return o
}
