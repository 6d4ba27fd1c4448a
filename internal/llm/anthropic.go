package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com"
	anthropicVersion         = "2023-06-01"
	anthropicMaxTokens       = 4096
)

// Anthropic is a client for the Anthropic Messages API.
type Anthropic struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewAnthropic builds an Anthropic client. An empty endpoint targets
// api.anthropic.com.
func NewAnthropic(model, apiKey, endpoint string) *Anthropic {
	if endpoint == "" {
		endpoint = anthropicDefaultEndpoint
	}
	return &Anthropic{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 300 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicBlock
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicEvent covers the stream events we read: message_start,
// content_block_delta and message_delta.
type anthropicEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// splitSystem lifts system messages into the top-level system field, which
// is where the Messages API expects them.
func splitSystem(messages []models.ChatMessage) (string, []anthropicMessage) {
	var system []string
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return strings.Join(system, "\n\n"), out
}

func (a *Anthropic) do(ctx context.Context, req anthropicRequest) (*http.Response, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key not configured")
	}
	req.Model = a.model
	req.MaxTokens = anthropicMaxTokens
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("anthropic: status %d: %s", httpResp.StatusCode, string(respBody))
	}
	return httpResp, nil
}

func (a *Anthropic) complete(ctx context.Context, req anthropicRequest) (*contracts.Completion, error) {
	httpResp, err := a.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var content strings.Builder
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}
	return &contracts.Completion{
		Content:      content.String(),
		InputTokens:  anthResp.Usage.InputTokens,
		OutputTokens: anthResp.Usage.OutputTokens,
	}, nil
}

// Chat performs a single blocking completion.
func (a *Anthropic) Chat(ctx context.Context, messages []models.ChatMessage) (*contracts.Completion, error) {
	system, msgs := splitSystem(messages)
	return a.complete(ctx, anthropicRequest{System: system, Messages: msgs})
}

// StreamChat reads the server-sent event stream and forwards text deltas.
func (a *Anthropic) StreamChat(ctx context.Context, messages []models.ChatMessage, onDelta contracts.DeltaFunc) (*contracts.Completion, error) {
	system, msgs := splitSystem(messages)
	httpResp, err := a.do(ctx, anthropicRequest{System: system, Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	out := &contracts.Completion{}
	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev anthropicEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "message_start":
			out.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			out.Content += ev.Delta.Text
			if err := onDelta(ev.Delta.Text); err != nil {
				return nil, err
			}
		case "message_delta":
			out.OutputTokens = ev.Usage.OutputTokens
		case "error":
			return nil, fmt.Errorf("anthropic: stream error event")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: read stream: %w", err)
	}
	return out, nil
}

// Complete sends the prompt with base64 image blocks. Images must be data
// URIs.
func (a *Anthropic) Complete(ctx context.Context, prompt string, images []string) (*contracts.Completion, error) {
	blocks := make([]anthropicBlock, 0, len(images)+1)
	for _, img := range images {
		mediaType, data, err := splitDataURI(img)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		blocks = append(blocks, anthropicBlock{
			Type:   "image",
			Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: data},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: prompt})
	return a.complete(ctx, anthropicRequest{
		Messages: []anthropicMessage{{Role: models.RoleUser, Content: blocks}},
	})
}

// splitDataURI parses "data:<media>;base64,<payload>".
func splitDataURI(uri string) (mediaType, data string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("image is not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", "", fmt.Errorf("image data URI is not base64")
	}
	return strings.TrimSuffix(meta, ";base64"), payload, nil
}
