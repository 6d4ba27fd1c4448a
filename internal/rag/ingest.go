package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// embedBatch bounds the texts sent per Embed call.
const embedBatch = 64

// Ingester splits text, embeds the chunks and upserts them into a project's
// collection.
type Ingester struct {
	embedder contracts.Embedder
	index    contracts.VectorIndex
}

// NewIngester creates an ingester.
func NewIngester(embedder contracts.Embedder, index contracts.VectorIndex) *Ingester {
	return &Ingester{embedder: embedder, index: index}
}

// IngestText indexes req.Text under req.Source. Chunks carry the source and
// keywords in their metadata so they can be cited and deleted by source.
func (ing *Ingester) IngestText(ctx context.Context, collection string, req models.IngestTextRequest) (*models.IngestResult, error) {
	start := time.Now()

	chunks := NewSplitter(req.ChunkSize, req.ChunkOverlap).Split(req.Text)
	if len(chunks) == 0 {
		return &models.IngestResult{Source: req.Source}, nil
	}

	vectors := make([][]float64, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatch {
		end := min(i+embedBatch, len(chunks))
		batch, err := ing.embedder.Embed(ctx, chunks[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", i, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	now := time.Now()
	docs := make([]models.VectorDoc, len(chunks))
	for i, text := range chunks {
		meta := map[string]string{models.MetaSource: req.Source}
		if req.Keywords != "" {
			meta[models.MetaKeywords] = req.Keywords
		}
		docs[i] = models.VectorDoc{
			ID:        uuid.NewString(),
			Content:   text,
			Metadata:  meta,
			Vector:    vectors[i],
			CreatedAt: now,
		}
	}

	if err := ing.index.Upsert(ctx, collection, docs); err != nil {
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}

	elapsed := time.Since(start)
	log.Info().
		Str("collection", collection).
		Str("source", req.Source).
		Int("chunks", len(chunks)).
		Dur("elapsed", elapsed).
		Msg("📥 Ingestion complete")

	return &models.IngestResult{
		Source:        req.Source,
		ChunksCreated: len(chunks),
		VectorsStored: len(docs),
		LatencyMs:     elapsed.Milliseconds(),
	}, nil
}
