// Package rerank reorders retrieval candidates. Two stages are provided: a
// late-interaction / cross-encoder service reached over HTTP, and an LLM
// judge.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
)

// Service calls a rerank endpoint speaking the common
// {model, query, documents, top_n} -> {results:[{index, relevance_score}]}
// shape (Jina, Cohere, Infinity, a ColBERT sidecar).
type Service struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewService creates a rerank client. endpoint is the base URL; /rerank
// is appended when missing.
func NewService(endpoint, model, apiKey string) *Service {
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/rerank") {
		endpoint += "/rerank"
	}
	return &Service{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type serviceRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type serviceResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns at most topN candidates ordered by the service's
// relevance score, which replaces the retrieval score.
func (s *Service) Rerank(ctx context.Context, query string, candidates []models.SearchResult, topN int) ([]models.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Doc.Content
	}
	body, err := json.Marshal(serviceRequest{Model: s.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed serviceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal rerank response: %w", err)
	}

	out := make([]models.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		c.Score = r.RelevanceScore
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}
