package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama embeds through a local Ollama server.
// Known models: nomic-embed-text (768d), mxbai-embed-large (1024d), all-minilm (384d).
type Ollama struct {
	endpoint   string
	name       string
	model      string
	dimensions int
	batchSize  int
	client     *http.Client
}

// NewOllama creates an Ollama embedder. An empty endpoint targets
// localhost:11434.
func NewOllama(name, model string, dimensions int, endpoint string) *Ollama {
	if dimensions == 0 {
		switch model {
		case "mxbai-embed-large":
			dimensions = 1024
		case "all-minilm", "all-minilm:l6-v2":
			dimensions = 384
		default:
			dimensions = 768
		}
	}
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &Ollama{
		endpoint:   strings.TrimRight(endpoint, "/"),
		name:       name,
		model:      model,
		dimensions: dimensions,
		batchSize:  512,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (d *Ollama) Name() string    { return d.name }
func (d *Ollama) Dimensions() int { return d.dimensions }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed generates vectors for texts through /api/embed.
func (d *Ollama) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += d.batchSize {
		end := min(start+d.batchSize, len(texts))
		batch, err := d.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (d *Ollama) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: d.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}
