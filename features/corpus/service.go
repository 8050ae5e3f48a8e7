package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// debugListLimit bounds the debug listing; the corpus can be large.
const debugListLimit = 1000

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// DeleteBatch removes documents by explicit id, chunk id, or parent id.
// Plain ids are ambiguous and are tried both as chunk ids and as parent
// ids. Categories are independent: a failure in one does not stop the
// others, and nothing is rolled back. The returned list reflects requested
// deletions, not confirmed ones.
func (s *Service) DeleteBatch(ctx context.Context, ids, chunkIDs, parentIDs []string) ([]string, error) {
	ids = compact(ids)
	chunkIDs = compact(chunkIDs)
	parentIDs = compact(parentIDs)

	if len(ids) == 0 && len(chunkIDs) == 0 && len(parentIDs) == 0 {
		return nil, ErrNoTargets
	}

	var deleted []string
	var errs []error

	if len(ids) > 0 {
		err := s.store.DeleteByChunkIDs(ctx, ids)
		if err2 := s.store.DeleteByParentIDs(ctx, ids); err == nil {
			err = err2
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("ids: %w", err))
			slog.ErrorContext(ctx, "delete by ids failed", "error", err)
		} else {
			deleted = append(deleted, ids...)
		}
	}

	if len(chunkIDs) > 0 {
		if err := s.store.DeleteByChunkIDs(ctx, chunkIDs); err != nil {
			errs = append(errs, fmt.Errorf("chunk_ids: %w", err))
			slog.ErrorContext(ctx, "delete by chunk ids failed", "error", err)
		} else {
			deleted = append(deleted, chunkIDs...)
		}
	}

	if len(parentIDs) > 0 {
		if err := s.store.DeleteByParentIDs(ctx, parentIDs); err != nil {
			errs = append(errs, fmt.Errorf("parent_ids: %w", err))
			slog.ErrorContext(ctx, "delete by parent ids failed", "error", err)
		} else {
			deleted = append(deleted, parentIDs...)
		}
	}

	if len(errs) > 0 {
		return deleted, fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.Join(errs...))
	}
	return deleted, nil
}

// ResolveParents maps each chunk id to its parent id. Stored metadata wins;
// unknown ids fall back to structural parsing of the id itself. Missing ids
// are logged but never fail the request.
func (s *Service) ResolveParents(ctx context.Context, chunkIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return result, nil
	}

	metas, err := s.store.GetMetadata(ctx, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var missing []string
	for _, id := range chunkIDs {
		if id == "" {
			continue
		}
		meta, found := metas[id]
		if found && meta.ParentID != "" {
			result[id] = meta.ParentID
			continue
		}
		if !found {
			missing = append(missing, id)
		}
		result[id] = structuralParent(id)
	}

	if len(missing) > 0 {
		slog.WarnContext(ctx, "some chunk ids were not found", "chunk_ids", missing)
	}
	return result, nil
}

// Debug returns the stored chunk count and a bounded listing.
func (s *Service) Debug(ctx context.Context) (int, []StoredChunk, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	chunks, err := s.store.List(ctx, debugListLimit)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, chunks, nil
}

// structuralParent derives a parent id from a chunk id of the form
// "{parent}_{index}". Ids without a numeric suffix map to themselves.
func structuralParent(id string) string {
	idx := strings.LastIndex(id, "_")
	if idx < 0 {
		return id
	}
	suffix := id[idx+1:]
	if suffix == "" || !isDigits(suffix) {
		return id
	}
	return id[:idx]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// compact drops blank entries, preserving order.
func compact(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
