package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"simdex/features/detect"
	"simdex/internal/middleware"
)

// checkTimeout bounds one classification, including index round trips.
const checkTimeout = 60 * time.Second

// Checker runs the inserting duplicate check.
type Checker interface {
	Check(ctx context.Context, sub detect.Submission) (*detect.Result, error)
}

// CheckConsumer drains queued submissions and classifies them in the
// background. Client-input failures are poison pills and are not retried.
type CheckConsumer struct {
	checker Checker
}

func NewCheckConsumer(checker Checker) *CheckConsumer {
	return &CheckConsumer{checker: checker}
}

func (h *CheckConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload CheckSubmitPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	res, err := h.checker.Check(ctx, detect.Submission{
		Content: payload.Content,
		Summary: payload.Summary,
	})
	if err != nil {
		if errors.Is(err, detect.ErrEmptyInput) || errors.Is(err, detect.ErrEmptyChunkSet) {
			// Poison Pill: Bad submission, a retry cannot fix it
			slog.WarnContext(ctx, "poison pill: invalid submission", "error", err)
			return nil
		}
		slog.ErrorContext(ctx, "queued check failed", "error", err)
		return err // Retry
	}

	if res.Duplicate {
		slog.InfoContext(ctx, "queued check: duplicate",
			"method", res.Method, "similarity", res.Similarity, "matched_id", res.MatchedID)
	} else {
		slog.InfoContext(ctx, "queued check: accepted",
			"parent_id", res.ParentID, "chunks", len(res.ChunkIDs))
	}
	return nil
}
