// Package store persists one vector index and its parallel chunk list per
// (user, conversation) and keeps a bounded set of them open in memory.
//
// The chunk at position i is the vector stored under HNSW key i. Every
// committed mutation keeps graph size equal to chunk count; a store that
// finds the two out of step discards the conversation's state and starts
// again from empty.
package store

import (
	"fmt"
	"regexp"
	"time"

	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

const (
	// DefaultMaxOpenIndices bounds the in-memory index cache.
	DefaultMaxOpenIndices = 5

	// DefaultExactSearchLimit is the largest index searched exhaustively;
	// larger ones go through the HNSW graph.
	DefaultExactSearchLimit = 2000

	DefaultM        = 16
	DefaultEfSearch = 64

	// DefaultLockTimeout bounds waiting for another process's file lock.
	DefaultLockTimeout = 30 * time.Second

	indexFileName  = "index.hnsw"
	chunksFileName = "chunks.json"
	lockSuffix     = ".lock"

	// Persisted artifacts smaller than these are treated as absent.
	minIndexFileSize  = 8
	minChunksFileSize = 2

	maxIDLength = 64
)

// HNSWConfig tunes the per-conversation graph.
type HNSWConfig struct {
	M                int `yaml:"m" json:"m"`
	EfSearch         int `yaml:"ef_search" json:"ef_search"`
	ExactSearchLimit int `yaml:"exact_search_limit" json:"exact_search_limit"`
}

// DefaultHNSWConfig returns the default graph parameters.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: DefaultM, EfSearch: DefaultEfSearch, ExactSearchLimit: DefaultExactSearchLimit}
}

// Config configures an IndexStore.
type Config struct {
	// Root holds <user>/<conversation>/ directories.
	Root           string
	MaxOpenIndices int
	HNSW           HNSWConfig
	LockTimeout    time.Duration
}

var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks a user or conversation id. Ids become path components,
// so only letters, digits, hyphens and underscores are allowed.
func ValidateID(kind, id string) error {
	switch {
	case id == "":
		return cerrors.New(cerrors.ErrCodeInvalidID, kind+" id cannot be empty", nil)
	case len(id) > maxIDLength:
		return cerrors.New(cerrors.ErrCodeInvalidID, fmt.Sprintf("%s id too long (max %d chars)", kind, maxIDLength), nil)
	case !validIDPattern.MatchString(id):
		return cerrors.New(cerrors.ErrCodeInvalidID, kind+" id can only contain letters, numbers, hyphens, and underscores", nil).
			WithDetail(kind, id)
	}
	return nil
}
