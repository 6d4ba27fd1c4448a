// Package llm provides the LLM provider clients behind contracts.LLM.
//
// OpenAI-compatible endpoints (OpenAI itself, Ollama's /v1 surface, vLLM and
// friends) share one client built on go-openai. Anthropic speaks its own
// Messages API over plain HTTP.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is an OpenAI-compatible chat client.
type OpenAI struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAI builds a client for model at baseURL. An empty baseURL targets
// api.openai.com.
func NewOpenAI(name, model, apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 300 * time.Second}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   name,
	}
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// Chat performs a single blocking completion.
func (o *OpenAI) Chat(ctx context.Context, messages []models.ChatMessage) (*contracts.Completion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: chat completion returned no choices", o.name)
	}
	return &contracts.Completion{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// StreamChat streams deltas through onDelta.
func (o *OpenAI) StreamChat(ctx context.Context, messages []models.ChatMessage, onDelta contracts.DeltaFunc) (*contracts.Completion, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:         o.model,
		Messages:      toOpenAIMessages(messages),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open stream: %w", o.name, err)
	}
	defer stream.Close()

	out := &contracts.Completion{}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: stream: %w", o.name, err)
		}
		if chunk.Usage != nil {
			out.InputTokens = chunk.Usage.PromptTokens
			out.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.Content += delta
		if err := onDelta(delta); err != nil {
			return nil, err
		}
	}
}

// Complete sends a multimodal user message: the prompt plus each image.
func (o *OpenAI) Complete(ctx context.Context, prompt string, images []string) (*contracts.Completion, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: vision completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: vision completion returned no choices", o.name)
	}
	return &contracts.Completion{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
