// Package embeddings provides the embedding clients behind
// contracts.Embedder: OpenAI through go-openai and Ollama over its native
// /api/embed endpoint.
package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI embeds through the OpenAI embeddings API or any compatible
// endpoint.
type OpenAI struct {
	client     *openai.Client
	name       string
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAI creates an OpenAI embedder. An empty baseURL targets
// api.openai.com.
func NewOpenAI(name, model string, dimensions int, apiKey, baseURL string) *OpenAI {
	if dimensions == 0 {
		dimensions = 1536
		if model == "text-embedding-3-large" {
			dimensions = 3072
		}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &OpenAI{
		client:     openai.NewClientWithConfig(cfg),
		name:       name,
		model:      model,
		dimensions: dimensions,
		batchSize:  2048,
	}
}

func (o *OpenAI) Name() string    { return o.name }
func (o *OpenAI) Dimensions() int { return o.dimensions }

// Embed generates vectors for texts, splitting into API-sized batches.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		batch := texts[start:end]

		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(o.model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		// Reorder by index
		out := make([][]float64, len(batch))
		for _, d := range resp.Data {
			if d.Index < len(out) {
				out[d.Index] = toFloat64(d.Embedding)
			}
		}
		for i, v := range out {
			if v == nil {
				return nil, fmt.Errorf("openai embeddings: missing vector %d", start+i)
			}
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
