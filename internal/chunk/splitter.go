package chunk

import (
	"strings"
)

// Break points, strongest first. Each cuts just after the matched separator.
var breakSeparators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	nil, // sentence end: one of .!? followed by a space
	[]rune("; "),
	[]rune(" "),
}

// Split cuts text into overlapping chunks of at most size runes.
//
// Text that already fits is returned unchanged as a single chunk, so
// re-splitting a produced chunk is a no-op.
func Split(text string, size, overlap int) []string {
	segs := Segments(text, size, overlap)
	if len(segs) == 0 {
		return nil
	}
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// Segments is Split with rune offsets.
func Segments(text string, size, overlap int) []Segment {
	opts := Options{Size: size, Overlap: overlap}.normalized()
	size, overlap = opts.Size, opts.Overlap

	if strings.TrimSpace(text) == "" {
		return nil
	}

	rs := []rune(text)
	n := len(rs)
	if n <= size {
		return []Segment{{Text: text, Start: 0, End: n}}
	}

	var segs []Segment
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = findBreak(rs, start, end, size)
		}

		piece := string(rs[start:end])
		if len([]rune(strings.TrimSpace(piece))) >= MinChunkChars {
			segs = append(segs, Segment{Text: piece, Start: start, End: end})
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return segs
}

// findBreak moves the hard cut at end back to the best break point inside the
// last third of the window. Returns end unchanged when none is found.
func findBreak(rs []rune, start, end, size int) int {
	lo := end - size/3
	if lo <= start {
		lo = start + 1
	}

	for _, sep := range breakSeparators {
		var cut int
		if sep == nil {
			cut = lastSentenceEnd(rs, lo, end)
		} else {
			cut = lastSeparator(rs, lo, end, sep)
		}
		if cut > start {
			return cut
		}
	}
	return end
}

// lastSeparator returns the offset just past the last occurrence of sep lying
// entirely within rs[lo:hi], or -1.
func lastSeparator(rs []rune, lo, hi int, sep []rune) int {
	for i := hi - len(sep); i >= lo; i-- {
		if runesAt(rs, i, sep) {
			return i + len(sep)
		}
	}
	return -1
}

func lastSentenceEnd(rs []rune, lo, hi int) int {
	for i := hi - 2; i >= lo; i-- {
		switch rs[i] {
		case '.', '!', '?':
			if rs[i+1] == ' ' {
				return i + 2
			}
		}
	}
	return -1
}

func runesAt(rs []rune, i int, sep []rune) bool {
	for j, r := range sep {
		if rs[i+j] != r {
			return false
		}
	}
	return true
}

// Build splits text and wraps each piece as a Chunk with its ordinal and
// source label.
func Build(text, sourceLabel string, opts Options) []Chunk {
	opts = opts.normalized()
	pieces := Split(text, opts.Size, opts.Overlap)
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{Text: p, Ordinal: uint32(i), SourceLabel: sourceLabel}
	}
	return chunks
}
