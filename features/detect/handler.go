package detect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/google/uuid"

	"simdex/internal/config"
	"simdex/internal/middleware"
)

// Publisher enqueues raw payloads for asynchronous processing.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	service   *Service
	publisher Publisher
}

func NewHandler(service *Service, publisher Publisher) *Handler {
	return &Handler{service: service, publisher: publisher}
}

// Check classifies a submission and inserts it when novel.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, true)
}

// CheckOnly classifies without writing anything.
func (h *Handler) CheckOnly(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, false)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request, insert bool) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	var res *Result
	var err error
	if insert {
		res, err = h.service.Check(r.Context(), sub)
	} else {
		res, err = h.service.CheckOnly(r.Context(), sub)
	}
	if err != nil {
		if errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrEmptyChunkSet) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "check failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	body := map[string]interface{}{
		"duplicate":       res.Duplicate,
		"similarity":      round4(res.Similarity),
		"matched_preview": res.MatchedPreview,
		"threshold":       h.service.Options().ChunkThreshold,
		"method":          res.Method,
	}
	if res.Duplicate {
		body["reason"] = res.Reason
		body["matched_id"] = res.MatchedID
	} else if insert {
		body["parent_id"] = res.ParentID
		body["chunk_ids"] = res.ChunkIDs
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// CheckAsync enqueues a submission for background classification.
func (h *Handler) CheckAsync(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if sub.Content == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", ErrEmptyInput.Error(), http.StatusBadRequest)
		return
	}

	correlationID := middleware.GetCorrelationID(r.Context())
	if correlationID == "" || correlationID == "unknown" {
		correlationID = uuid.New().String()
	}

	payload, err := json.Marshal(map[string]string{
		"content":        sub.Content,
		"summary":        sub.Summary,
		"correlation_id": correlationID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to marshal payload", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.publisher.Publish(config.TopicCheckSubmit, payload); err != nil {
		slog.ErrorContext(r.Context(), "failed to publish submission", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":         "queued",
		"correlation_id": correlationID,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// GetConfig reports the detector settings fixed at startup.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	opts := h.service.Options()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"threshold":         opts.ChunkThreshold,
		"threshold_summary": opts.SummaryThreshold,
		"chunk_size":        opts.ChunkSize,
		"min_chunk_ratio":   opts.MinChunkRatio,
		"min_chunk_size":    opts.MinChunkSize,
		"use_hybrid":        opts.UseHybrid,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
