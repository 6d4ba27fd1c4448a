package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// New builds the client described by def. A definition may name its own
// base URL and API-key environment variable; otherwise the provider-wide
// settings apply.
func New(def models.LLMDefinition, cfg config.ProviderConfig) (contracts.LLM, error) {
	apiKey := ""
	if def.APIKeyEnv != "" {
		apiKey = os.Getenv(def.APIKeyEnv)
	}

	switch def.Class {
	case models.LLMClassOpenAI:
		if apiKey == "" {
			apiKey = cfg.OpenAIKey
		}
		baseURL := def.BaseURL
		if baseURL == "" {
			baseURL = cfg.OpenAIBaseURL
		}
		return NewOpenAI(def.Name, def.Model, apiKey, baseURL), nil

	case models.LLMClassOllama:
		baseURL := def.BaseURL
		if baseURL == "" {
			baseURL = cfg.OllamaURL
		}
		baseURL = strings.TrimRight(baseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		// Ollama ignores the key but go-openai always sends one.
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAI(def.Name, def.Model, apiKey, baseURL), nil

	case models.LLMClassAnthropic:
		if apiKey == "" {
			apiKey = cfg.AnthropicKey
		}
		return NewAnthropic(def.Model, apiKey, def.BaseURL), nil

	default:
		return nil, fmt.Errorf("unsupported LLM class %q for %s", def.Class, def.Name)
	}
}
