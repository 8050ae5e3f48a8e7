package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"simdex/internal/middleware"
)

// debugPreviewLength is how much chunk text the debug listing shows.
const debugPreviewLength = 100

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// DeleteBatch removes chunk records by id, chunk id, or parent id.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs       []string `json:"ids"`
		ChunkIDs  []string `json:"chunk_ids"`
		ParentIDs []string `json:"parent_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	deleted, err := h.service.DeleteBatch(r.Context(), req.IDs, req.ChunkIDs, req.ParentIDs)
	if err != nil {
		if errors.Is(err, ErrNoTargets) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "delete batch failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if deleted == nil {
		deleted = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "ok",
		"deleted_items": deleted,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// GetParentIDs resolves the parent id for each requested chunk id.
func (h *Handler) GetParentIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChunkIDs []string `json:"chunk_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.ResolveParents(r.Context(), req.ChunkIDs)
	if err != nil {
		slog.ErrorContext(r.Context(), "resolve parents failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Debug lists stored chunk previews and the total count.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	count, chunks, err := h.service.Debug(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "debug listing failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	documents := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		documents = append(documents, map[string]interface{}{
			"id":               c.ChunkID,
			"document_preview": debugPreview(c.Text),
			"document_length":  len(c.Text),
			"metadata":         c.Metadata,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"count":     count,
		"documents": documents,
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

func debugPreview(s string) string {
	runes := []rune(s)
	if len(runes) <= debugPreviewLength {
		return s
	}
	return string(runes[:debugPreviewLength]) + "..."
}
