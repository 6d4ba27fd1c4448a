package vectorstore_test

import (
	"context"
	"math"
	"testing"

	"github.com/agentoven/ragserve/internal/vectorstore"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, source string, v ...float64) models.VectorDoc {
	return models.VectorDoc{ID: id, Content: "text " + id, Vector: v, Metadata: map[string]string{models.MetaSource: source}}
}

func TestEmbedded_SearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewEmbeddedStore()
	require.NoError(t, s.Upsert(ctx, "docs", []models.VectorDoc{
		doc("far", "a", 0, 1),
		doc("near", "a", 1, 0.1),
		doc("exact", "b", 1, 0),
	}))

	res, err := s.Search(ctx, "docs", []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "exact", res[0].Doc.ID)
	assert.Equal(t, 0.0, res[0].Distance)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "near", res[1].Doc.ID)
	assert.InDelta(t, 0.1, res[1].Distance, 1e-9)
	assert.Equal(t, "docs", res[0].Doc.Collection)
}

func TestEmbedded_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewEmbeddedStore()
	require.NoError(t, s.Upsert(ctx, "one", []models.VectorDoc{doc("x", "a", 1, 0)}))

	res, err := s.Search(ctx, "two", []float64{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestEmbedded_Deletes(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewEmbeddedStore()
	require.NoError(t, s.Upsert(ctx, "docs", []models.VectorDoc{
		doc("1", "manual.md", 1, 0),
		doc("2", "manual.md", 0, 1),
		doc("3", "faq.md", 1, 1),
	}))

	n, err := s.DeleteBySource(ctx, "docs", "manual.md")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, _ := s.Count(ctx, "docs")
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteByID(ctx, "docs", "3"))
	assert.Error(t, s.DeleteByID(ctx, "docs", "3"))

	require.NoError(t, s.Upsert(ctx, "docs", []models.VectorDoc{doc("4", "x", 1, 0)}))
	require.NoError(t, s.DeleteCollection(ctx, "docs"))
	count, _ = s.Count(ctx, "docs")
	assert.Equal(t, 0, count)
}

func TestEmbedded_Capacity(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewEmbeddedStore(vectorstore.WithMaxVectors(2))
	require.NoError(t, s.Upsert(ctx, "docs", []models.VectorDoc{doc("1", "a", 1), doc("2", "a", 2)}))
	// Overwriting an existing id does not grow the store.
	require.NoError(t, s.Upsert(ctx, "docs", []models.VectorDoc{doc("1", "a", 3)}))
	assert.Error(t, s.Upsert(ctx, "docs", []models.VectorDoc{doc("3", "a", 4)}))
}

func TestEmbedded_DistanceIsEuclidean(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewEmbeddedStore()
	require.NoError(t, s.Upsert(ctx, "c", []models.VectorDoc{doc("p", "a", 3, 4)}))
	res, err := s.Search(ctx, "c", []float64{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 5.0, res[0].Distance, 1e-9)
	assert.False(t, math.IsNaN(res[0].Score))
}

func TestRegistry(t *testing.T) {
	r := vectorstore.NewRegistry()
	_, err := r.Get(models.VectorStorePgvector)
	assert.Error(t, err)

	r.Register(models.VectorStoreEmbedded, vectorstore.NewEmbeddedStore())
	idx, err := r.Get(models.VectorStoreEmbedded)
	require.NoError(t, err)
	assert.Equal(t, "embedded", idx.Backend())
	assert.Equal(t, []string{"embedded"}, r.List())
}
