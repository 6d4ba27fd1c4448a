// Package strategies implements the per-type inference algorithms the
// dispatcher delegates to: Inference, RAG, RAGSql, Router, Agent and
// Vision.
//
// Every strategy runs the guard check first, then resolves the project's
// LLM, then runs its own algorithm. A nil emit means buffered output; a
// non-nil emit receives the answer text as it is produced.
package strategies

import (
	"context"
	"regexp"
	"strings"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/guardrails"
	"github.com/agentoven/ragserve/internal/params"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// Strategy answers stateless questions and, where supported, chat turns.
type Strategy interface {
	Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error)
}

// ChatStrategy is a Strategy that also supports multi-turn chat.
type ChatStrategy interface {
	Strategy
	Chat(ctx context.Context, p *project.Project, req models.ChatRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error)
}

// base carries what every strategy needs.
type base struct {
	brain *brain.Brain
}

func (s base) defaults() params.Defaults {
	inf := s.brain.Config.Inference
	return params.Defaults{K: inf.DefaultK, Score: inf.DefaultScore}
}

func (s base) system(request string, p *project.Project) string {
	return params.System(request, p.System, s.brain.Config.Inference.DefaultSystem)
}

func (s base) censorship(p *project.Project) string {
	return p.CensorshipOr(s.brain.Config.Inference.DefaultCensorship)
}

// blocked runs the heuristic guardrails and then the LLM guard of p. It
// reports true when the text must not reach the project's LLM.
func (s base) blocked(ctx context.Context, p *project.Project, text string) (bool, error) {
	if len(p.Options.Guardrails) > 0 {
		if passed, results := guardrails.Evaluate(p.Options.Guardrails, text); !passed {
			last := results[len(results)-1]
			log.Info().
				Str("project", p.Name).
				Str("guardrail", string(last.Kind)).
				Str("reason", last.Message).
				Msg("🛡️ Guardrail blocked request")
			return true, nil
		}
	}
	if p.Guard == "" {
		return false, nil
	}
	g, err := s.brain.Guard(ctx, p.Guard)
	if err != nil {
		return false, err
	}
	unsafe, err := g.Verify(ctx, text)
	if err != nil {
		return false, err
	}
	if unsafe {
		log.Info().Str("project", p.Name).Str("guard", p.Guard).Msg("🛡️ Guard blocked request")
	}
	return unsafe, nil
}

// censored is the terminal output of a blocked request.
func (s base) censored(p *project.Project, question string, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	answer := s.censorship(p)
	if err := send(emit, answer); err != nil {
		return nil, err
	}
	return &models.InferenceOutput{
		Question: question,
		Type:     p.Type,
		Answer:   answer,
		Sources:  []models.Source{},
		Guard:    true,
		Project:  p.Name,
	}, nil
}

func (s base) llm(ctx context.Context, p *project.Project) (contracts.LLM, error) {
	return s.brain.LLM(ctx, p.LLM)
}

// call runs one completion, streaming through emit when it is set.
func call(ctx context.Context, llm contracts.LLM, msgs []models.ChatMessage, emit contracts.DeltaFunc) (*contracts.Completion, error) {
	if emit == nil {
		return llm.Chat(ctx, msgs)
	}
	return llm.StreamChat(ctx, msgs, emit)
}

// send emits text as a single delta when streaming.
func send(emit contracts.DeltaFunc, text string) error {
	if emit == nil || text == "" {
		return nil
	}
	return emit(text)
}

func tokensOf(c *contracts.Completion) models.Tokens {
	return models.Tokens{Input: c.InputTokens, Output: c.OutputTokens}
}

func addTokens(t *models.Tokens, c *contracts.Completion) {
	t.Input += c.InputTokens
	t.Output += c.OutputTokens
}

var thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// SplitThink moves a <think>...</think> block out of answer. It returns the
// visible answer and the reasoning, which is empty when there is no block.
func SplitThink(answer string) (visible, reasoning string) {
	m := thinkBlock.FindStringSubmatchIndex(answer)
	if m == nil {
		return answer, ""
	}
	reasoning = strings.TrimSpace(answer[m[2]:m[3]])
	visible = strings.TrimSpace(answer[:m[0]] + answer[m[1]:])
	return visible, reasoning
}

func withReasoning(out *models.InferenceOutput) {
	visible, reasoning := SplitThink(out.Answer)
	out.Answer = visible
	if reasoning != "" {
		out.Reasoning = reasoning
	}
}

func systemMessage(text string) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleSystem, Content: text}
}

func userMessage(text string) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleUser, Content: text}
}

// history drops system messages from a session history.
func history(msgs []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != models.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
