package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"simdex/features/corpus"
	"simdex/features/detect"
	"simdex/internal/vector"
)

// chunkNamespace derives deterministic Weaviate object ids from chunk ids,
// so a chunk can be addressed by its application-level id.
var chunkNamespace = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

// Embedder turns text into the vector stored and queried in Weaviate; the
// class is configured with no vectorizer of its own.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store implements both the detector's similarity index and the corpus
// feature's chunk store on one Weaviate class.
type Store struct {
	client   *weaviate.Client
	embedder Embedder
}

func NewStore(client *weaviate.Client, embedder Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

func objectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String())
}

// AddChunks inserts all records in one batch. On partial failure the
// already-written objects are deleted again so a document's chunks appear
// together or not at all.
func (s *Store) AddChunks(ctx context.Context, chunks []detect.ChunkRecord) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class: vector.ClassArticleChunk,
			ID:    objectID(c.ChunkID),
			Properties: map[string]interface{}{
				"chunkId":    c.ChunkID,
				"content":    c.Text,
				"source":     c.Metadata.Source,
				"parentId":   c.Metadata.ParentID,
				"chunkIndex": c.Metadata.ChunkIndex,
			},
			Vector: vectors[i],
		}
	}

	res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}

	var failed []string
	for i, obj := range res {
		if i < len(chunks) && obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			failed = append(failed, chunks[i].ChunkID)
		}
	}
	if len(failed) > 0 {
		all := make([]string, len(chunks))
		for i, c := range chunks {
			all[i] = c.ChunkID
		}
		if delErr := s.DeleteByChunkIDs(ctx, all); delErr != nil {
			return fmt.Errorf("batch insert failed for %v and rollback failed: %w", failed, delErr)
		}
		return fmt.Errorf("batch insert failed for %v", failed)
	}
	return nil
}

// Query runs one nearest-neighbor search per text and returns matches
// ordered by ascending distance.
func (s *Store) Query(ctx context.Context, texts []string, topK int) ([][]detect.Match, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d queries", len(vectors), len(texts))
	}

	results := make([][]detect.Match, len(texts))
	for i := range texts {
		nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vectors[i])
		fields := []graphql.Field{
			{Name: "chunkId"},
			{Name: "content"},
			{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		}

		res, err := s.client.GraphQL().Get().
			WithClassName(vector.ClassArticleChunk).
			WithNearVector(nearVector).
			WithLimit(topK).
			WithFields(fields...).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("graphql error: %v", res.Errors)
		}

		results[i] = parseMatches(res.Data)
	}
	return results, nil
}

func parseMatches(data map[string]models.JSONObject) []detect.Match {
	var matches []detect.Match
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return matches
	}
	rows, ok := get[vector.ClassArticleChunk].([]interface{})
	if !ok {
		return matches
	}
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		var m detect.Match
		if id, ok := props["chunkId"].(string); ok {
			m.ID = id
		}
		if content, ok := props["content"].(string); ok {
			m.Text = content
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				m.Distance = d
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// GetMetadata looks up stored metadata for the given chunk ids. Unknown
// ids are simply absent from the result.
func (s *Store) GetMetadata(ctx context.Context, chunkIDs []string) (map[string]corpus.Metadata, error) {
	out := make(map[string]corpus.Metadata, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}

	where := filters.Where().
		WithPath([]string{"chunkId"}).
		WithOperator(filters.ContainsAny).
		WithValueString(chunkIDs...)

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "source"},
		{Name: "parentId"},
		{Name: "chunkIndex"},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassArticleChunk).
		WithWhere(where).
		WithLimit(len(chunkIDs)).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	get, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return out, nil
	}
	rows, ok := get[vector.ClassArticleChunk].([]interface{})
	if !ok {
		return out, nil
	}
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := props["chunkId"].(string)
		if !ok {
			continue
		}
		var meta corpus.Metadata
		if source, ok := props["source"].(string); ok {
			meta.Source = source
		}
		if parentID, ok := props["parentId"].(string); ok {
			meta.ParentID = parentID
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			meta.ChunkIndex = int(idx)
		}
		out[id] = meta
	}
	return out, nil
}

// DeleteByChunkIDs removes the chunk records with exactly these chunk ids.
func (s *Store) DeleteByChunkIDs(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassArticleChunk).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"chunkId"}).
			WithOperator(filters.ContainsAny).
			WithValueString(chunkIDs...)).
		Do(ctx)
	return err
}

// DeleteByParentIDs removes every chunk record whose parentId metadata
// matches one of the given ids.
func (s *Store) DeleteByParentIDs(ctx context.Context, parentIDs []string) error {
	if len(parentIDs) == 0 {
		return nil
	}
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassArticleChunk).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"parentId"}).
			WithOperator(filters.ContainsAny).
			WithValueString(parentIDs...)).
		Do(ctx)
	return err
}

// List returns up to limit stored chunks, for the debug listing.
func (s *Store) List(ctx context.Context, limit int) ([]corpus.StoredChunk, error) {
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "content"},
		{Name: "source"},
		{Name: "parentId"},
		{Name: "chunkIndex"},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassArticleChunk).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var chunks []corpus.StoredChunk
	get, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return chunks, nil
	}
	rows, ok := get[vector.ClassArticleChunk].([]interface{})
	if !ok {
		return chunks, nil
	}
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		var c corpus.StoredChunk
		if id, ok := props["chunkId"].(string); ok {
			c.ChunkID = id
		}
		if content, ok := props["content"].(string); ok {
			c.Text = content
		}
		if source, ok := props["source"].(string); ok {
			c.Metadata.Source = source
		}
		if parentID, ok := props["parentId"].(string); ok {
			c.Metadata.ParentID = parentID
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			c.Metadata.ChunkIndex = int(idx)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count reports how many chunk records are stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassArticleChunk).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[vector.ClassArticleChunk].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	props, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := props["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
