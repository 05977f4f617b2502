package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/convorag/internal/chunk"
	"github.com/Aman-CERP/convorag/internal/search"
)

// conversationDir returns <root>/<user>/<conversation>.
func (s *IndexStore) conversationDir(userID, convID string) string {
	return filepath.Join(s.cfg.Root, userID, convID)
}

func (s *IndexStore) lockPath(userID, convID string) string {
	return filepath.Join(s.cfg.Root, userID, convID+lockSuffix)
}

// readIndex loads the persisted graph and chunk list into idx. Missing,
// truncated or unreadable artifacts leave idx empty and are not an error;
// the returned bool reports whether usable state was found.
func readIndex(dir string, idx *ConversationIndex) bool {
	indexPath := filepath.Join(dir, indexFileName)
	chunksPath := filepath.Join(dir, chunksFileName)

	if !fileAtLeast(indexPath, minIndexFileSize) || !fileAtLeast(chunksPath, minChunksFileSize) {
		return false
	}

	chunks, err := readChunks(chunksPath)
	if err != nil {
		slog.Warn("chunk list unreadable, starting empty",
			slog.String("path", chunksPath),
			slog.String("error", err.Error()))
		return false
	}

	f, err := os.Open(indexPath)
	if err != nil {
		slog.Warn("index file unreadable, starting empty",
			slog.String("path", indexPath),
			slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = f.Close() }()

	graph := newGraph(idx.cfg)
	if err := importGraph(graph, f); err != nil {
		slog.Warn("index file corrupt, starting empty",
			slog.String("path", indexPath),
			slog.String("error", err.Error()))
		return false
	}
	graph.EfSearch = idx.cfg.EfSearch

	if graph.Len() != len(chunks) {
		slog.Warn("index and chunk list disagree, starting empty",
			slog.String("dir", dir),
			slog.Int("vectors", graph.Len()),
			slog.Int("chunks", len(chunks)))
		return false
	}

	idx.graph = graph
	idx.chunks = chunks
	idx.tokens = make([][]string, len(chunks))
	for i, ch := range chunks {
		idx.tokens[i] = search.Tokenize(ch.Text)
	}
	idx.dims = 0
	if v, ok := graph.Lookup(0); ok {
		idx.dims = len(v)
	}
	return true
}

// readChunks decodes chunks.json. Older files stored a bare array of
// strings; those load with ordinals and no source label.
func readChunks(path string) ([]chunk.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var chunks []chunk.Chunk
	if err := json.Unmarshal(data, &chunks); err == nil {
		return chunks, nil
	}

	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("decode chunk list: %w", err)
	}
	chunks = make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = chunk.Chunk{Text: t, Ordinal: uint32(i)}
	}
	return chunks, nil
}

// writeIndex persists idx into dir. Both artifacts are written to temp files
// first and renamed only after both succeed. Caller holds idx.mu for reading.
func writeIndex(dir string, idx *ConversationIndex) error {
	indexPath := filepath.Join(dir, indexFileName)
	chunksPath := filepath.Join(dir, chunksFileName)

	if idx.graph.Len() == 0 {
		for _, p := range []string{indexPath, chunksPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", p, err)
			}
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create conversation directory: %w", err)
	}

	tmpIndex := indexPath + ".tmp"
	tmpChunks := chunksPath + ".tmp"
	cleanup := func() {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpChunks)
	}

	f, err := os.Create(tmpIndex)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := idx.graph.Export(w); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close index file: %w", err)
	}

	data, err := json.Marshal(idx.chunks)
	if err != nil {
		cleanup()
		return fmt.Errorf("encode chunk list: %w", err)
	}
	if err := os.WriteFile(tmpChunks, data, 0644); err != nil {
		cleanup()
		return fmt.Errorf("write chunk list: %w", err)
	}

	if err := os.Rename(tmpIndex, indexPath); err != nil {
		cleanup()
		return fmt.Errorf("rename index file: %w", err)
	}
	if err := os.Rename(tmpChunks, chunksPath); err != nil {
		cleanup()
		return fmt.Errorf("rename chunk list: %w", err)
	}
	return nil
}

// importGraph decodes an exported graph. Malformed input can make the
// decoder panic, so that is reported as an error too.
func importGraph(graph *hnsw.Graph[uint64], r io.Reader) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("import graph: %v", p)
		}
	}()
	// coder/hnsw Import needs an io.ByteReader.
	return graph.Import(bufio.NewReader(r))
}

func fileAtLeast(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() >= size
}
