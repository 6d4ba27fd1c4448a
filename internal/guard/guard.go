// Package guard classifies prompts as safe or unsafe with an LLM. The guard
// project's system prompt is expected to instruct the model to answer with
// GOOD or BAD; any other reply counts as unsafe.
package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

const (
	verdictSafe   = "GOOD"
	verdictUnsafe = "BAD"
)

// Guard is an LLM-backed classifier bound to a guard project.
type Guard struct {
	Project string
	llm     contracts.LLM
	system  string
}

// New binds a guard to the guard project's LLM and system prompt.
func New(project string, llm contracts.LLM, system string) *Guard {
	return &Guard{Project: project, llm: llm, system: system}
}

// Verify reports whether prompt is unsafe. Provider failures are returned
// as errors rather than verdicts.
func (g *Guard) Verify(ctx context.Context, prompt string) (bool, error) {
	out, err := g.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: g.system},
		{Role: models.RoleUser, Content: "Analyze the following text:\n\"" + prompt + "\""},
	})
	if err != nil {
		return false, fmt.Errorf("guard %s: %w", g.Project, err)
	}
	return Classify(out.Content), nil
}

// Classify maps a raw model reply to the unsafe flag.
func Classify(reply string) bool {
	switch strings.TrimSpace(reply) {
	case verdictSafe:
		return false
	case verdictUnsafe:
		return true
	default:
		return true
	}
}
