package strategies

import (
	"context"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// Inference is plain chat against a system prompt.
type Inference struct{ base }

// NewInference creates the inference strategy.
func NewInference(b *brain.Brain) *Inference { return &Inference{base{brain: b}} }

// Question answers a single stateless question.
func (s *Inference) Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		return s.censored(p, req.Question, emit)
	}

	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}
	msgs := []models.ChatMessage{
		systemMessage(s.system(req.System, p)),
		userMessage(req.Question),
	}
	c, err := call(ctx, llm, msgs, emit)
	if err != nil {
		return nil, err
	}

	out := &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Answer:   c.Content,
		Sources:  []models.Source{},
		Tokens:   tokensOf(c),
		Project:  p.Name,
	}
	withReasoning(out)
	return out, nil
}

// Chat answers one turn of a session. A blocked turn is not recorded.
func (s *Inference) Chat(ctx context.Context, p *project.Project, req models.ChatRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	sess := s.brain.Session(req.ID)

	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		out, err := s.censored(p, req.Question, emit)
		if out != nil {
			out.ID = sess.ID
		}
		return out, err
	}

	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}
	msgs, err := sess.Seed(ctx, s.system("", p))
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, userMessage(req.Question))

	c, err := call(ctx, llm, msgs, emit)
	if err != nil {
		return nil, err
	}

	out := &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Answer:   c.Content,
		Sources:  []models.Source{},
		Tokens:   tokensOf(c),
		Project:  p.Name,
		ID:       sess.ID,
	}
	withReasoning(out)
	if err := sess.AppendTurn(ctx, req.Question, out.Answer); err != nil {
		return nil, err
	}
	return out, nil
}
