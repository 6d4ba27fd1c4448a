package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/internal/llm"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, wantPath string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"beep beep"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Chat(t *testing.T) {
	srv := openAIServer(t, "/chat/completions")
	c := llm.NewOpenAI("gpt-4o", "gpt-4o", "sk-test", srv.URL)

	out, err := c.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "beep beep", out.Content)
	assert.Equal(t, 7, out.InputTokens)
	assert.Equal(t, 2, out.OutputTokens)
}

func TestNew_OllamaUsesV1(t *testing.T) {
	srv := openAIServer(t, "/v1/chat/completions")
	c, err := llm.New(models.LLMDefinition{Name: "local", Class: models.LLMClassOllama, Model: "llama3"}, config.ProviderConfig{OllamaURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "beep beep", out.Content)
}

func TestNew_UnknownClass(t *testing.T) {
	_, err := llm.New(models.LLMDefinition{Name: "x", Class: "bogus"}, config.ProviderConfig{})
	assert.Error(t, err)
}

func TestAnthropic_ChatLiftsSystem(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"content":[{"type":"text","text":"GOOD"}],"usage":{"input_tokens":11,"output_tokens":1}}`)
	}))
	defer srv.Close()

	c := llm.NewAnthropic("claude", "key", srv.URL)
	out, err := c.Chat(context.Background(), []models.ChatMessage{
		{Role: models.RoleSystem, Content: "be safe"},
		{Role: models.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "GOOD", out.Content)
	assert.Equal(t, 11, out.InputTokens)
	assert.Equal(t, "be safe", got["system"])
	assert.Len(t, got["messages"], 1)
}

func TestAnthropic_StreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":5}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
			`{"type":"message_delta","usage":{"output_tokens":2}}`,
			`{"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
		}
	}))
	defer srv.Close()

	var deltas []string
	c := llm.NewAnthropic("claude", "key", srv.URL)
	out, err := c.StreamChat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", out.Content)
	assert.Equal(t, 5, out.InputTokens)
	assert.Equal(t, 2, out.OutputTokens)
}

func TestAnthropic_CompleteRejectsNonDataURI(t *testing.T) {
	c := llm.NewAnthropic("claude", "key", "http://127.0.0.1:1")
	_, err := c.Complete(context.Background(), "what is this", []string{"https://example.com/cat.png"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "data URI"))
}

func TestAnthropic_MissingKey(t *testing.T) {
	c := llm.NewAnthropic("claude", "", "")
	_, err := c.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
