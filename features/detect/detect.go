package detect

import (
	"context"
	"errors"
)

// Classification methods reported to callers.
const (
	MethodChunks            = "chunks"
	MethodHybridSummaryFull = "hybrid_summary_full"
)

// ChunkSource tags every stored chunk record.
const ChunkSource = "article"

var (
	// ErrEmptyInput means the normalized content was empty. Client error.
	ErrEmptyInput = errors.New("text cannot be empty")

	// ErrEmptyChunkSet means chunking produced nothing. Only reachable if
	// input validation is bypassed.
	ErrEmptyChunkSet = errors.New("text resulted in 0 chunks")

	// ErrIndexUnavailable wraps failures of the similarity index.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
)

// Submission is one document to classify. It lives only for the duration
// of a single check.
type Submission struct {
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// Match is one ranked similarity hit, closest first. Similarity is
// 1 - Distance.
type Match struct {
	ID       string
	Text     string
	Distance float64
}

// ChunkMetadata is persisted alongside every chunk record. All chunks of
// one accepted document share a ParentID and carry contiguous ChunkIndex
// values starting at 0.
type ChunkMetadata struct {
	Source     string `json:"source"`
	ParentID   string `json:"parent_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// ChunkRecord is the unit stored and searched. ChunkID is structurally
// "{parent_id}_{index}".
type ChunkRecord struct {
	ChunkID  string
	Text     string
	Metadata ChunkMetadata
}

// SimilarityIndex is the nearest-neighbor capability the detector consumes.
// Query returns, per input text, matches ordered by ascending distance.
// AddChunks must insert all records or none.
type SimilarityIndex interface {
	Query(ctx context.Context, texts []string, topK int) ([][]Match, error)
	AddChunks(ctx context.Context, chunks []ChunkRecord) error
}

// Result is the terminal outcome of one check. ParentID and ChunkIDs are
// set only for an inserting check that classified the document as novel.
type Result struct {
	Duplicate      bool
	Similarity     float64
	MatchedPreview string
	Reason         string
	MatchedID      string
	Method         string
	ParentID       string
	ChunkIDs       []string
}

// Options fixes the detector's behavior for the process lifetime. It is
// constructed once at startup from config and injected, never read as
// ambient state.
type Options struct {
	ChunkThreshold   float64
	SummaryThreshold float64
	ChunkSize        int
	MinChunkRatio    float64
	MinChunkSize     int
	UseHybrid        bool
}
