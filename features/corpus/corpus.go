package corpus

import (
	"context"
	"errors"
)

var (
	// ErrNoTargets means a deletion request named nothing. Client error.
	ErrNoTargets = errors.New("no valid ids provided")

	// ErrStoreUnavailable wraps failures of the corpus store.
	ErrStoreUnavailable = errors.New("corpus store unavailable")
)

// Metadata is what the store keeps per chunk.
type Metadata struct {
	Source     string `json:"source"`
	ParentID   string `json:"parent_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// StoredChunk is one persisted chunk record as returned by listings.
type StoredChunk struct {
	ChunkID  string
	Text     string
	Metadata Metadata
}

// Store is the corpus capability consumed by this feature. Deletions are
// best-effort: a missing target is not an error.
type Store interface {
	GetMetadata(ctx context.Context, chunkIDs []string) (map[string]Metadata, error)
	DeleteByChunkIDs(ctx context.Context, chunkIDs []string) error
	DeleteByParentIDs(ctx context.Context, parentIDs []string) error
	List(ctx context.Context, limit int) ([]StoredChunk, error)
	Count(ctx context.Context) (int, error)
}
