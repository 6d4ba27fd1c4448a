// Package cache is the per-project semantic response cache. Questions are
// embedded into a dedicated collection of the project's vector index and
// answers ride along in the document metadata.
package cache

import (
	"context"
	"fmt"
	"math"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
)

// DefaultThreshold is the similarity a hit must exceed.
const DefaultThreshold = 0.9

// CollectionSuffix is appended to the project name to form the cache
// collection. Project names cannot contain a slash, so no document
// collection can share it.
const CollectionSuffix = "/cache"

// Collection returns the cache collection of a project.
func Collection(project string) string { return project + CollectionSuffix }

// Cache is a nearest-neighbour lookup of previously answered questions.
type Cache struct {
	index      contracts.VectorIndex
	embedder   contracts.Embedder
	collection string
	threshold  float64
}

// New binds a cache to a project. A threshold of zero or less selects
// DefaultThreshold.
func New(project string, index contracts.VectorIndex, embedder contracts.Embedder, threshold float64) *Cache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Cache{
		index:      index,
		embedder:   embedder,
		collection: Collection(project),
		threshold:  threshold,
	}
}

// Threshold returns the configured hit threshold.
func (c *Cache) Threshold() float64 { return c.threshold }

// Verify looks up the nearest cached question. It hits when
// exp(-distance) is strictly above the threshold.
func (c *Cache) Verify(ctx context.Context, question string) (string, bool, error) {
	vec, err := c.embed(ctx, question)
	if err != nil {
		return "", false, err
	}
	res, err := c.index.Search(ctx, c.collection, vec, 1)
	if err != nil {
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}
	if len(res) == 0 {
		return "", false, nil
	}
	if Similarity(res[0].Distance) <= c.threshold {
		return "", false, nil
	}
	return res[0].Doc.Metadata[models.MetaAnswer], true, nil
}

// Add stores the pair. Duplicates are not collapsed.
func (c *Cache) Add(ctx context.Context, question, answer string) error {
	vec, err := c.embed(ctx, question)
	if err != nil {
		return err
	}
	doc := models.VectorDoc{
		ID:       uuid.NewString(),
		Content:  question,
		Vector:   vec,
		Metadata: map[string]string{models.MetaAnswer: answer},
	}
	if err := c.index.Upsert(ctx, c.collection, []models.VectorDoc{doc}); err != nil {
		return fmt.Errorf("cache add: %w", err)
	}
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.index.DeleteCollection(ctx, c.collection)
}

func (c *Cache) embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("cache embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("cache embed: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// Similarity converts an L2 distance into a (0,1] similarity.
func Similarity(distance float64) float64 {
	return math.Exp(-distance)
}
