package embeddings

import (
	"fmt"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// New builds the embedder described by def.
func New(def models.EmbeddingDefinition, cfg config.ProviderConfig) (contracts.Embedder, error) {
	switch def.Class {
	case models.LLMClassOpenAI:
		return NewOpenAI(def.Name, def.Model, def.Dimensions, cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	case models.LLMClassOllama:
		return NewOllama(def.Name, def.Model, def.Dimensions, cfg.OllamaURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedding class %q for %s", def.Class, def.Name)
	}
}
