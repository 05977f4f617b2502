// Package discovery keeps a global, in-memory index of the documents in the
// shared pool directory so queries can find files relevant to them before
// those files have been ingested into any conversation.
package discovery

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/convorag/internal/embed"
	"github.com/Aman-CERP/convorag/internal/extract"
)

const (
	// DefaultSummaryChars is how much of each document is embedded.
	DefaultSummaryChars = 500

	// DefaultThreshold is the exclusive lower bound on relevance.
	DefaultThreshold = 0.35
)

// Embedder is the subset of embed.Client used here. Failures are zero
// vectors, never errors.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Options tunes the index.
type Options struct {
	SummaryChars int
	Threshold    float64
	// Exclude holds extra gitignore-style patterns applied with the pool's
	// .convoragignore.
	Exclude []string
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{SummaryChars: DefaultSummaryChars, Threshold: DefaultThreshold}
}

// Record is one pool document.
type Record struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Summary   string    `json:"summary"`
	Embedding []float32 `json:"-"`
}

// Match is a record scored against a query.
type Match struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Index is the global file-record index. Safe for concurrent use.
type Index struct {
	pool     string
	embedder Embedder
	opts     Options

	mu      sync.RWMutex
	records []Record
	built   bool
	// gen counts invalidations. A build only marks the index built if no
	// invalidation happened while it ran.
	gen uint64

	group singleflight.Group
}

// New creates an index over the pool directory. Nothing is read until the
// first Build or FindRelevant.
func New(pool string, embedder Embedder, opts Options) *Index {
	if opts.SummaryChars <= 0 {
		opts.SummaryChars = DefaultSummaryChars
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Index{pool: pool, embedder: embedder, opts: opts}
}

// Pool returns the pool directory.
func (x *Index) Pool() string { return x.pool }

// Built reports whether the index holds a current build.
func (x *Index) Built() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

// Build scans the pool and embeds every supported document. Concurrent
// callers share one scan; once built, Build returns immediately until
// Invalidate is called. A scan overtaken by Invalidate is repeated.
//
// The shared scan is not cancelled with ctx; a caller whose ctx ends stops
// waiting and gets ctx.Err().
func (x *Index) Build(ctx context.Context) error {
	for !x.Built() {
		ch := x.group.DoChan("build", func() (any, error) {
			return nil, x.build(context.WithoutCancel(ctx))
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (x *Index) build(ctx context.Context) error {
	start := time.Now()
	x.mu.RLock()
	gen := x.gen
	built := x.built
	x.mu.RUnlock()
	if built {
		return nil
	}

	candidates, err := x.scan(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(candidates))
	for i, r := range candidates {
		texts[i] = r.Filename + "\n" + r.Summary
	}
	vectors := x.embedder.EmbedBatch(ctx, texts)

	records := make([]Record, 0, len(candidates))
	for i, r := range candidates {
		if i >= len(vectors) || embed.IsZero(vectors[i]) {
			slog.Debug("skipping pool file without embedding", slog.String("path", r.Path))
			continue
		}
		r.Embedding = vectors[i]
		records = append(records, r)
	}

	x.mu.Lock()
	if x.gen != gen {
		x.mu.Unlock()
		slog.Debug("discovery index invalidated during build, rescanning", slog.String("pool", x.pool))
		return nil
	}
	x.records = records
	x.built = true
	x.mu.Unlock()

	slog.Info("discovery index built",
		slog.String("pool", x.pool),
		slog.Int("files", len(candidates)),
		slog.Int("records", len(records)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// scan walks the pool and extracts a summary for every supported file.
// Hidden entries and ignored paths are skipped.
func (x *Index) scan(ctx context.Context) ([]Record, error) {
	if _, err := os.Stat(x.pool); err != nil {
		return nil, err
	}
	ignore := loadIgnoreSet(filepath.Join(x.pool, IgnoreFileName), x.opts.Exclude)

	var out []Record
	err := filepath.WalkDir(x.pool, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("pool walk error", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == x.pool {
			return nil
		}

		rel, _ := filepath.Rel(x.pool, path)
		if strings.HasPrefix(d.Name(), ".") || ignore.match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !extract.Supported(d.Name()) {
			return nil
		}

		text := extract.File(path)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		out = append(out, Record{
			Filename: d.Name(),
			Path:     path,
			Summary:  firstRunes(text, x.opts.SummaryChars),
		})
		return nil
	})
	return out, err
}

// FindRelevant returns pool paths whose score against query is above the
// threshold, best first, at most topK (all when topK <= 0). Any failure
// yields an empty result.
func (x *Index) FindRelevant(ctx context.Context, query string, topK int) []string {
	matches := x.Search(ctx, query, topK)
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.Path
	}
	return paths
}

// Search is FindRelevant with scores.
func (x *Index) Search(ctx context.Context, query string, topK int) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if err := x.Build(ctx); err != nil {
		slog.Warn("discovery build failed", slog.String("pool", x.pool), slog.String("error", err.Error()))
		return nil
	}

	qv := x.embedder.Embed(ctx, query)
	if embed.IsZero(qv) {
		return nil
	}

	x.mu.RLock()
	var matches []Match
	for _, r := range x.records {
		if len(r.Embedding) != len(qv) {
			continue
		}
		if score := embed.Cosine(qv, r.Embedding); score > x.opts.Threshold {
			matches = append(matches, Match{Path: r.Path, Score: score})
		}
	}
	x.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Invalidate marks the index stale; the next Build rescans the pool.
func (x *Index) Invalidate() {
	x.mu.Lock()
	x.built = false
	x.gen++
	x.mu.Unlock()
}

// Rebuild rescans the pool now.
func (x *Index) Rebuild(ctx context.Context) error {
	x.Invalidate()
	return x.Build(ctx)
}

// Records returns a copy of the current records.
func (x *Index) Records() []Record {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Record, len(x.records))
	copy(out, x.records)
	return out
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
