package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/ragserve/internal/params"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// Pipeline retrieves context for a question in fixed stages: vector search,
// cross-encoder rerank, LLM-judge rerank, score cutoff.
type Pipeline struct {
	embedder contracts.Embedder
	index    contracts.VectorIndex
	colbert  contracts.Reranker // nil disables the stage
	judge    contracts.Reranker // nil disables the stage
}

// NewPipeline creates a retrieval pipeline. Either reranker may be nil.
func NewPipeline(embedder contracts.Embedder, index contracts.VectorIndex, colbert, judge contracts.Reranker) *Pipeline {
	return &Pipeline{embedder: embedder, index: index, colbert: colbert, judge: judge}
}

// Retrieve runs the pipeline for question against collection.
func (p *Pipeline) Retrieve(ctx context.Context, collection, question string, prm params.Retrieval) ([]models.SearchResult, error) {
	start := time.Now()

	vecs, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	results, err := p.index.Search(ctx, collection, vecs[0], prm.FetchK())
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	retrieved := len(results)

	if prm.ColbertRerank {
		if p.colbert == nil {
			return nil, fmt.Errorf("colbert rerank requested but no rerank service is configured")
		}
		if results, err = p.colbert.Rerank(ctx, question, results, prm.K); err != nil {
			return nil, fmt.Errorf("colbert rerank: %w", err)
		}
	}
	if prm.LLMRerank {
		if p.judge == nil {
			return nil, fmt.Errorf("llm rerank requested but no judge is configured")
		}
		if results, err = p.judge.Rerank(ctx, question, results, prm.K); err != nil {
			return nil, err
		}
	}

	results = Cutoff(results, prm.Score)

	log.Debug().
		Str("collection", collection).
		Int("retrieved", retrieved).
		Int("kept", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("RAG retrieval complete")
	return results, nil
}

// Cutoff keeps results whose score is at least threshold, in order.
func Cutoff(results []models.SearchResult, threshold float64) []models.SearchResult {
	if threshold <= 0 {
		return results
	}
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Context joins the retrieved passages for the synthesis prompt.
func Context(results []models.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Sources converts results to output sources. lite drops the passage text.
func Sources(results []models.SearchResult, lite bool) []models.Source {
	out := make([]models.Source, 0, len(results))
	for _, r := range results {
		s := models.Source{
			ID:       r.Doc.ID,
			Source:   r.Doc.Metadata[models.MetaSource],
			Keywords: r.Doc.Metadata[models.MetaKeywords],
			Score:    r.Score,
		}
		if !lite {
			s.Content = r.Doc.Content
		}
		out = append(out, s)
	}
	return out
}
