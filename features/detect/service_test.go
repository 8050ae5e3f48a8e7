package detect_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"simdex/features/detect"
)

type MockIndex struct{ mock.Mock }

func (m *MockIndex) Query(ctx context.Context, texts []string, topK int) ([][]detect.Match, error) {
	args := m.Called(ctx, texts, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]detect.Match), args.Error(1)
}

func (m *MockIndex) AddChunks(ctx context.Context, chunks []detect.ChunkRecord) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func defaultOptions() detect.Options {
	return detect.Options{
		ChunkThreshold:   0.92,
		SummaryThreshold: 0.95,
		ChunkSize:        500,
		MinChunkRatio:    0.6,
		UseHybrid:        true,
	}
}

// noHits answers any number of query texts with zero matches each.
func noHits(texts []string) [][]detect.Match {
	return make([][]detect.Match, len(texts))
}

func TestService_Check_EmptyInput(t *testing.T) {
	index := new(MockIndex)
	svc := detect.NewService(index, defaultOptions(), nil)

	for _, content := range []string{"", "   ", "<p>  </p>"} {
		_, err := svc.Check(context.Background(), detect.Submission{Content: content})
		assert.ErrorIs(t, err, detect.ErrEmptyInput, "content %q", content)
	}
	index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Check_NovelInsertsChunks(t *testing.T) {
	index := new(MockIndex)
	content := strings.Repeat("x", 1100) // 3 chunks: 500 + 500 + 100 merged -> 500 + 600

	index.On("Query", mock.Anything, mock.Anything, 1).
		Return([][]detect.Match{
			{{ID: "other_0", Text: "other text", Distance: 0.5}},
			{{ID: "other_1", Text: "more text", Distance: 0.4}},
		}, nil)

	var inserted []detect.ChunkRecord
	index.On("AddChunks", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inserted = args.Get(1).([]detect.ChunkRecord)
		}).
		Return(nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.Check(context.Background(), detect.Submission{Content: content})
	assert.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, detect.MethodChunks, res.Method)
	assert.InDelta(t, 0.6, res.Similarity, 1e-9)

	assert.NotEmpty(t, res.ParentID)
	assert.Len(t, inserted, 2)
	assert.Equal(t, res.ChunkIDs, []string{res.ParentID + "_0", res.ParentID + "_1"})
	for i, rec := range inserted {
		assert.Equal(t, fmt.Sprintf("%s_%d", res.ParentID, i), rec.ChunkID)
		assert.Equal(t, res.ParentID, rec.Metadata.ParentID)
		assert.Equal(t, i, rec.Metadata.ChunkIndex)
		assert.Equal(t, detect.ChunkSource, rec.Metadata.Source)
	}
}

func TestService_CheckOnly_NeverInserts(t *testing.T) {
	index := new(MockIndex)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return([][]detect.Match{{{ID: "a_0", Text: "t", Distance: 0.5}}}, nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.CheckOnly(context.Background(), detect.Submission{Content: "short unique article"})
	assert.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Empty(t, res.ParentID)
	assert.Empty(t, res.ChunkIDs)
	index.AssertNotCalled(t, "AddChunks", mock.Anything, mock.Anything)
}

func TestService_Check_ThresholdBoundary(t *testing.T) {
	// Similarity exactly at threshold counts as duplicate (>=, not >)
	index := new(MockIndex)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return([][]detect.Match{{{ID: "a_0", Text: "stored chunk", Distance: 0.08}}}, nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.Check(context.Background(), detect.Submission{Content: "some text"})
	assert.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.InDelta(t, 0.92, res.Similarity, 1e-9)
	assert.Equal(t, "a_0", res.MatchedID)
	assert.Equal(t, detect.MethodChunks, res.Method)
	index.AssertNotCalled(t, "AddChunks", mock.Anything, mock.Anything)
}

func TestService_Check_FirstMatchWins(t *testing.T) {
	// Two qualifying chunks: the lower-indexed one is reported even though
	// the second is more similar.
	index := new(MockIndex)
	content := strings.Repeat("y", 1200) // 500 + 700

	index.On("Query", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 2
	}), 1).Return([][]detect.Match{
		{{ID: "first_0", Text: "first match", Distance: 0.05}},
		{{ID: "second_0", Text: "second match", Distance: 0.01}},
	}, nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.Check(context.Background(), detect.Submission{Content: content})
	assert.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "first_0", res.MatchedID)
	assert.Equal(t, "chunk 0 is a duplicate", res.Reason)
}

func TestService_Check_HybridShortCircuit(t *testing.T) {
	opts := defaultOptions()
	summary := strings.Repeat("summary text ", 10)

	t.Run("Summary and confirmation both pass", func(t *testing.T) {
		index := new(MockIndex)
		// Summary pre-check: 3 nearest neighbors, best similarity 0.96
		index.On("Query", mock.Anything, mock.Anything, 3).
			Return([][]detect.Match{{
				{ID: "s_0", Text: "near", Distance: 0.04},
				{ID: "s_1", Text: "far", Distance: 0.30},
			}}, nil)
		// Confirmation: similarity 0.93 >= chunk threshold
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{{ID: "full_0", Text: "the full stored text", Distance: 0.07}}}, nil)

		svc := detect.NewService(index, opts, nil)
		res, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: summary,
		})
		assert.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, detect.MethodHybridSummaryFull, res.Method)
		assert.Equal(t, "full_0", res.MatchedID)
		assert.InDelta(t, 0.93, res.Similarity, 1e-9)
		assert.Equal(t, "full text match (after summary check)", res.Reason)
		index.AssertNotCalled(t, "AddChunks", mock.Anything, mock.Anything)
	})

	t.Run("Confirmation below threshold falls through to chunk scan", func(t *testing.T) {
		index := new(MockIndex)
		index.On("Query", mock.Anything, mock.Anything, 3).
			Return([][]detect.Match{{{ID: "s_0", Text: "near", Distance: 0.04}}}, nil).Once()
		// Confirmation similarity 0.80 < 0.92, then the chunk query finds nothing
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{{ID: "full_0", Text: "t", Distance: 0.20}}}, nil).Once()
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{}}, nil).Once()
		index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

		svc := detect.NewService(index, opts, nil)
		res, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: summary,
		})
		assert.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, detect.MethodChunks, res.Method)
		index.AssertNumberOfCalls(t, "Query", 3)
	})

	t.Run("Summary below threshold skips confirmation", func(t *testing.T) {
		index := new(MockIndex)
		index.On("Query", mock.Anything, mock.Anything, 3).
			Return([][]detect.Match{{{ID: "s_0", Text: "near", Distance: 0.10}}}, nil)
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{}}, nil)
		index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

		svc := detect.NewService(index, opts, nil)
		res, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: summary,
		})
		assert.NoError(t, err)
		assert.False(t, res.Duplicate)
		index.AssertNumberOfCalls(t, "Query", 2)
	})

	t.Run("Short summary never triggers the fast path", func(t *testing.T) {
		index := new(MockIndex)
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{}}, nil)
		index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

		svc := detect.NewService(index, opts, nil)
		_, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: "short",
		})
		assert.NoError(t, err)
		index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, 3)
	})

	t.Run("Summary length is counted in characters", func(t *testing.T) {
		// 20 CJK characters are 60 bytes but well under the 50-character
		// minimum, so the fast path must not fire.
		index := new(MockIndex)
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{}}, nil)
		index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

		svc := detect.NewService(index, opts, nil)
		_, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: strings.Repeat("語", 20),
		})
		assert.NoError(t, err)
		index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, 3)
	})

	t.Run("Hybrid disabled ignores summary", func(t *testing.T) {
		disabled := opts
		disabled.UseHybrid = false

		index := new(MockIndex)
		index.On("Query", mock.Anything, mock.Anything, 1).
			Return([][]detect.Match{{}}, nil)
		index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

		svc := detect.NewService(index, disabled, nil)
		_, err := svc.Check(context.Background(), detect.Submission{
			Content: "the full submitted text",
			Summary: summary,
		})
		assert.NoError(t, err)
		index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, 3)
	})
}

func TestService_Check_PreviewTruncation(t *testing.T) {
	index := new(MockIndex)
	long := strings.Repeat("m", 250)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return([][]detect.Match{{{ID: "a_0", Text: long, Distance: 0.01}}}, nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.Check(context.Background(), detect.Submission{Content: "some text"})
	assert.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, strings.Repeat("m", 200)+"...", res.MatchedPreview)
}

func TestService_Check_IndexFailure(t *testing.T) {
	index := new(MockIndex)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return(nil, errors.New("connection refused"))

	svc := detect.NewService(index, defaultOptions(), nil)
	_, err := svc.Check(context.Background(), detect.Submission{Content: "some text"})
	assert.ErrorIs(t, err, detect.ErrIndexUnavailable)
}

func TestService_Check_EmptyCorpusIsNovel(t *testing.T) {
	index := new(MockIndex)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return(noHits([]string{"x"}), nil)
	index.On("AddChunks", mock.Anything, mock.Anything).Return(nil)

	svc := detect.NewService(index, defaultOptions(), nil)
	res, err := svc.Check(context.Background(), detect.Submission{Content: "first article ever"})
	assert.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Zero(t, res.Similarity)
	assert.Empty(t, res.MatchedPreview)
}

func TestService_Check_InsertFailure(t *testing.T) {
	index := new(MockIndex)
	index.On("Query", mock.Anything, mock.Anything, 1).
		Return(noHits([]string{"x"}), nil)
	index.On("AddChunks", mock.Anything, mock.Anything).Return(errors.New("batch failed"))

	svc := detect.NewService(index, defaultOptions(), nil)
	_, err := svc.Check(context.Background(), detect.Submission{Content: "unique text"})
	assert.ErrorIs(t, err, detect.ErrIndexUnavailable)
}
