package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/convorag/internal/chunk"
	"github.com/Aman-CERP/convorag/internal/embed"
	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

// IndexStore maps (user, conversation) to a ConversationIndex, caching a
// bounded number of them in memory. Safe for concurrent use.
type IndexStore struct {
	cfg   Config
	cache *lru.Cache[string, *ConversationIndex]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIndexStore creates a store rooted at cfg.Root.
func NewIndexStore(cfg Config) (*IndexStore, error) {
	if cfg.Root == "" {
		return nil, cerrors.ConfigError("store root is required", nil)
	}
	if cfg.MaxOpenIndices <= 0 {
		cfg.MaxOpenIndices = DefaultMaxOpenIndices
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.HNSW == (HNSWConfig{}) {
		cfg.HNSW = DefaultHNSWConfig()
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, cerrors.StorageError("failed to create store root", err).WithDetail("root", cfg.Root)
	}

	cache, err := lru.NewWithEvict(cfg.MaxOpenIndices, func(key string, _ *ConversationIndex) {
		slog.Debug("index evicted from cache", slog.String("key", key))
	})
	if err != nil {
		return nil, fmt.Errorf("create index cache: %w", err)
	}

	return &IndexStore{
		cfg:   cfg,
		cache: cache,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the data directory.
func (s *IndexStore) Root() string { return s.cfg.Root }

func cacheKey(userID, convID string) string { return userID + "/" + convID }

// keyLock returns the in-process mutex for key.
func (s *IndexStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// acquire takes the in-process and cross-process locks for a conversation.
// The returned func releases both.
func (s *IndexStore) acquire(ctx context.Context, userID, convID string) (func(), error) {
	m := s.keyLock(cacheKey(userID, convID))
	m.Lock()

	fl := NewFileLock(s.lockPath(userID, convID))
	if err := fl.Lock(ctx, s.cfg.LockTimeout); err != nil {
		m.Unlock()
		return nil, cerrors.New(cerrors.ErrCodeLockFailed, "failed to lock conversation", err).
			WithDetail("user", userID).
			WithDetail("conversation", convID)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("failed to release lock", slog.String("error", err.Error()))
		}
		m.Unlock()
	}, nil
}

// Load returns the index for a conversation and whether it existed.
// It never fails: invalid ids, lock failures and unreadable artifacts all
// yield an empty index.
func (s *IndexStore) Load(ctx context.Context, userID, convID string) (*ConversationIndex, bool) {
	if err := validatePair(userID, convID); err != nil {
		slog.Warn("load with invalid id", slog.String("error", err.Error()))
		return NewConversationIndex(s.cfg.HNSW), false
	}

	key := cacheKey(userID, convID)
	if idx, ok := s.cache.Get(key); ok {
		return idx, idx.exists()
	}

	release, err := s.acquire(ctx, userID, convID)
	if err != nil {
		slog.Warn("load without lock, returning empty index", slog.String("error", err.Error()))
		return NewConversationIndex(s.cfg.HNSW), false
	}
	defer release()

	idx, _ := s.loadLocked(userID, convID)
	return idx, idx.exists()
}

// loadLocked returns the cached index or reads it from disk. Caller holds
// the conversation lock.
func (s *IndexStore) loadLocked(userID, convID string) (*ConversationIndex, bool) {
	key := cacheKey(userID, convID)
	if idx, ok := s.cache.Get(key); ok {
		return idx, true
	}

	start := time.Now()
	idx := NewConversationIndex(s.cfg.HNSW)
	idx.mu.Lock()
	idx.onDisk = readIndex(s.conversationDir(userID, convID), idx)
	idx.mu.Unlock()

	if idx.onDisk {
		slog.Debug("index loaded",
			slog.String("key", key),
			slog.Int("chunks", idx.Len()),
			slog.Duration("duration", time.Since(start)))
	}
	s.cache.Add(key, idx)
	return idx, false
}

func (c *ConversationIndex) exists() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onDisk || len(c.chunks) > 0
}

// Append adds chunk/vector pairs to a conversation's index and persists it.
// Pairs with all-zero vectors are skipped.
func (s *IndexStore) Append(ctx context.Context, userID, convID string, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return cerrors.New(cerrors.ErrCodeLengthMismatch, "chunks and vectors differ in length", nil).
			WithDetail("chunks", fmt.Sprint(len(chunks))).
			WithDetail("vectors", fmt.Sprint(len(vectors)))
	}
	if err := validatePair(userID, convID); err != nil {
		return err
	}

	release, err := s.acquire(ctx, userID, convID)
	if err != nil {
		return err
	}
	defer release()

	idx, _ := s.loadLocked(userID, convID)

	keptChunks, keptVectors := dropZeroVectors(chunks, vectors)

	idx.mu.Lock()
	if !idx.parityOK() {
		slog.Warn("index out of step with chunk list, resetting",
			slog.String("key", cacheKey(userID, convID)),
			slog.Int("vectors", idx.graph.Len()),
			slog.Int("chunks", len(idx.chunks)))
		idx.reset()
	}

	if len(keptVectors) > 0 {
		dims := len(keptVectors[0])
		if idx.dims != 0 && idx.dims != dims {
			slog.Warn("embedding dimension changed, resetting index",
				slog.String("key", cacheKey(userID, convID)),
				slog.Int("old", idx.dims),
				slog.Int("new", dims))
			idx.reset()
		}
		keptChunks, keptVectors = keepDimension(keptChunks, keptVectors, dims)
		idx.add(keptChunks, keptVectors)
	}
	idx.mu.Unlock()

	if len(keptChunks) == 0 && len(chunks) > 0 {
		slog.Debug("append skipped, every vector was zero",
			slog.String("key", cacheKey(userID, convID)),
			slog.Int("dropped", len(chunks)))
	}

	idx.mu.RLock()
	err = writeIndex(s.conversationDir(userID, convID), idx)
	idx.mu.RUnlock()
	if err == nil {
		// The key lock is held, so no append can land between the write
		// and this update.
		idx.mu.Lock()
		idx.onDisk = idx.graph.Len() > 0
		idx.mu.Unlock()
	}
	if err != nil {
		return cerrors.StorageError("failed to persist index", err).
			WithDetail("user", userID).
			WithDetail("conversation", convID)
	}
	return nil
}

func dropZeroVectors(chunks []chunk.Chunk, vectors [][]float32) ([]chunk.Chunk, [][]float32) {
	outC := make([]chunk.Chunk, 0, len(chunks))
	outV := make([][]float32, 0, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 || embed.IsZero(v) {
			continue
		}
		outC = append(outC, chunks[i])
		outV = append(outV, v)
	}
	return outC, outV
}

func keepDimension(chunks []chunk.Chunk, vectors [][]float32, dims int) ([]chunk.Chunk, [][]float32) {
	outC := chunks[:0:0]
	outV := vectors[:0:0]
	for i, v := range vectors {
		if len(v) != dims {
			slog.Warn("dropping vector with unexpected dimension",
				slog.Int("expected", dims),
				slog.Int("got", len(v)))
			continue
		}
		outC = append(outC, chunks[i])
		outV = append(outV, v)
	}
	return outC, outV
}

// Cleanup deletes a conversation's artifacts and cache entry. Deleting a
// conversation that does not exist is not an error.
func (s *IndexStore) Cleanup(ctx context.Context, userID, convID string) error {
	if err := validatePair(userID, convID); err != nil {
		return err
	}

	release, err := s.acquire(ctx, userID, convID)
	if err != nil {
		return err
	}
	defer release()

	return s.cleanupLocked(userID, convID)
}

func (s *IndexStore) cleanupLocked(userID, convID string) error {
	s.cache.Remove(cacheKey(userID, convID))
	if err := os.RemoveAll(s.conversationDir(userID, convID)); err != nil {
		return cerrors.StorageError("failed to remove conversation", err).
			WithDetail("user", userID).
			WithDetail("conversation", convID)
	}
	return nil
}

// CleanupUser deletes every conversation of a user.
func (s *IndexStore) CleanupUser(ctx context.Context, userID string) error {
	if err := ValidateID("user", userID); err != nil {
		return err
	}

	convs, err := s.Conversations(userID)
	if err != nil {
		return err
	}
	for _, convID := range convs {
		if err := s.Cleanup(ctx, userID, convID); err != nil {
			return err
		}
	}

	prefix := userID + "/"
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Remove(key)
		}
	}

	if err := os.RemoveAll(filepath.Join(s.cfg.Root, userID)); err != nil {
		return cerrors.StorageError("failed to remove user directory", err).WithDetail("user", userID)
	}
	return nil
}

// Conversations lists the conversation ids with a directory under userID.
func (s *IndexStore) Conversations(userID string) ([]string, error) {
	if err := ValidateID("user", userID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.cfg.Root, userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.StorageError("failed to list conversations", err).WithDetail("user", userID)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() && ValidateID("conversation", e.Name()) == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Cached reports whether a conversation is currently held in memory.
func (s *IndexStore) Cached(userID, convID string) bool {
	return s.cache.Contains(cacheKey(userID, convID))
}

func validatePair(userID, convID string) error {
	if err := ValidateID("user", userID); err != nil {
		return err
	}
	return ValidateID("conversation", convID)
}
