package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassArticleChunk holds every stored chunk record. Vectors are supplied
// by the application; the class has no vectorizer.
const ClassArticleChunk = "ArticleChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the chunk class exists and creates it if not,
// adding any missing properties to an existing class.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassArticleChunk)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "chunkId",
			DataType: []string{"string"}, // "{parentId}_{index}" (exact match)
		},
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "source",
			DataType: []string{"string"},
		},
		{
			Name:     "parentId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassArticleChunk,
			Description: "A chunk of an accepted article",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassArticleChunk)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassArticleChunk, p); err != nil {
				return err
			}
		}
	}

	return nil
}
