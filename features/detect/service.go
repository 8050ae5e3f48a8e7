package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"simdex/internal/text"
)

const (
	// The summary fast-path only fires for summaries longer than this
	// (trimmed), matching the intent of a "real" summary vs. a fragment.
	minSummaryLength = 50

	// Neighbors requested for the summary pre-check.
	summaryTopK = 3

	// The confirmation query uses at most this many runes of content.
	confirmProbeLength = 2000

	// Previews of matched text are cut at this many runes.
	previewLength = 200
)

// Service classifies submissions as duplicate or novel against the
// similarity index, inserting accepted documents as chunk records.
type Service struct {
	index   SimilarityIndex
	chunker text.Chunker
	opts    Options
	audit   *CheckLogger
}

func NewService(index SimilarityIndex, opts Options, audit *CheckLogger) *Service {
	return &Service{
		index: index,
		chunker: text.Chunker{
			Size:     opts.ChunkSize,
			MinSize:  opts.MinChunkSize,
			MinRatio: opts.MinChunkRatio,
		},
		opts:  opts,
		audit: audit,
	}
}

// Options exposes the fixed detector configuration (for the config endpoint).
func (s *Service) Options() Options {
	return s.opts
}

// Check classifies the submission and, when novel, inserts its chunks
// under a freshly minted parent id.
func (s *Service) Check(ctx context.Context, sub Submission) (*Result, error) {
	return s.run(ctx, sub, true)
}

// CheckOnly classifies without ever writing to the index.
func (s *Service) CheckOnly(ctx context.Context, sub Submission) (*Result, error) {
	return s.run(ctx, sub, false)
}

func (s *Service) run(ctx context.Context, sub Submission, insert bool) (*Result, error) {
	start := time.Now()

	content := text.Normalize(sub.Content)
	if content == "" {
		return nil, ErrEmptyInput
	}

	if s.opts.UseHybrid && utf8.RuneCountInString(strings.TrimSpace(sub.Summary)) > minSummaryLength {
		res, err := s.summaryCheck(ctx, sub.Summary, content)
		if err != nil {
			return nil, err
		}
		if res != nil {
			s.log(ctx, sub, res, start)
			return res, nil
		}
	}

	res, err := s.chunkCheck(ctx, content, insert)
	if err != nil {
		return nil, err
	}
	s.log(ctx, sub, res, start)
	return res, nil
}

// summaryCheck is the hybrid fast-path: a cheap query on the summary,
// confirmed against the head of the full content. It returns nil when the
// fast-path does not fire, leaving classification to the chunk scan. It
// never inserts, since it only concludes on an already-found duplicate.
func (s *Service) summaryCheck(ctx context.Context, summary, content string) (*Result, error) {
	clean := text.Normalize(summary)
	if clean == "" {
		return nil, nil
	}

	hits, err := s.index.Query(ctx, []string{clean}, summaryTopK)
	if err != nil {
		return nil, fmt.Errorf("%w: summary query: %v", ErrIndexUnavailable, err)
	}
	if len(hits) == 0 || len(hits[0]) == 0 {
		return nil, nil
	}
	if 1-hits[0][0].Distance < s.opts.SummaryThreshold {
		return nil, nil
	}

	probe := content
	if runes := []rune(probe); len(runes) > confirmProbeLength {
		probe = string(runes[:confirmProbeLength])
	}
	confirm, err := s.index.Query(ctx, []string{probe}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: confirmation query: %v", ErrIndexUnavailable, err)
	}
	if len(confirm) == 0 || len(confirm[0]) == 0 {
		return nil, nil
	}

	best := confirm[0][0]
	similarity := 1 - best.Distance
	if similarity < s.opts.ChunkThreshold {
		return nil, nil
	}

	return &Result{
		Duplicate:      true,
		Similarity:     similarity,
		MatchedPreview: preview(best.Text),
		Reason:         "full text match (after summary check)",
		MatchedID:      best.ID,
		Method:         MethodHybridSummaryFull,
	}, nil
}

// chunkCheck scans chunks in order and stops at the first one whose
// nearest neighbor reaches the threshold. Classification is therefore
// decided by the earliest qualifying chunk, not the highest similarity.
func (s *Service) chunkCheck(ctx context.Context, content string, insert bool) (*Result, error) {
	chunks := s.chunker.Split(content)
	if len(chunks) == 0 {
		return nil, ErrEmptyChunkSet
	}

	hits, err := s.index.Query(ctx, chunks, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk query: %v", ErrIndexUnavailable, err)
	}

	var best float64
	var bestPreview string
	for i, matches := range hits {
		if i >= len(chunks) || len(matches) == 0 {
			continue
		}
		m := matches[0]
		similarity := 1 - m.Distance
		if similarity > best {
			best = similarity
			bestPreview = preview(m.Text)
		}
		if similarity >= s.opts.ChunkThreshold {
			return &Result{
				Duplicate:      true,
				Similarity:     similarity,
				MatchedPreview: preview(m.Text),
				Reason:         fmt.Sprintf("chunk %d is a duplicate", i),
				MatchedID:      m.ID,
				Method:         MethodChunks,
			}, nil
		}
	}

	res := &Result{
		Similarity:     best,
		MatchedPreview: bestPreview,
		Method:         MethodChunks,
	}
	if !insert {
		return res, nil
	}

	parentID := uuid.New().String()
	records := make([]ChunkRecord, len(chunks))
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s_%d", parentID, i)
		chunkIDs[i] = id
		records[i] = ChunkRecord{
			ChunkID: id,
			Text:    c,
			Metadata: ChunkMetadata{
				Source:     ChunkSource,
				ParentID:   parentID,
				ChunkIndex: i,
			},
		}
	}
	if err := s.index.AddChunks(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: insert: %v", ErrIndexUnavailable, err)
	}
	slog.InfoContext(ctx, "document accepted", "parent_id", parentID, "chunks", len(chunkIDs))

	res.ParentID = parentID
	res.ChunkIDs = chunkIDs
	return res, nil
}

func (s *Service) log(ctx context.Context, sub Submission, res *Result, start time.Time) {
	if s.audit == nil {
		return
	}
	s.audit.Log(CheckLogEntry{
		ContentLength: len(sub.Content),
		Duplicate:     res.Duplicate,
		Method:        res.Method,
		Similarity:    res.Similarity,
		Duration:      time.Since(start),
	})
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}
