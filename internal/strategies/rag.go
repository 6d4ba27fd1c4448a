package strategies

import (
	"context"
	"fmt"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/params"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/rag"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

const qaTemplate = "Context:\n%s\n\nQuery: %s\n\nAnswer:"

const chatContextTemplate = `%s

Context information from the knowledge base is below.
---------------------
%s
---------------------
Using the context and the conversation so far, answer the user's latest message.`

// RAG answers from passages retrieved out of the project's vector index.
type RAG struct{ base }

// NewRAG creates the RAG strategy.
func NewRAG(b *brain.Brain) *RAG { return &RAG{base{brain: b}} }

func (s *RAG) retrieve(ctx context.Context, p *project.Project, question string, prm params.Retrieval) ([]models.SearchResult, error) {
	idx, emb, err := p.Index(ctx)
	if err != nil {
		return nil, err
	}
	var judge contracts.Reranker
	if prm.LLMRerank {
		if judge, err = s.brain.Judge(ctx, p.LLM); err != nil {
			return nil, err
		}
	}
	return rag.NewPipeline(emb, idx, s.brain.Colbert, judge).Retrieve(ctx, p.Collection(), question, prm)
}

// Question retrieves, reranks, applies the cutoff and synthesizes an
// answer. A sandboxed project with nothing retrieved answers with its
// censorship message and never calls the LLM.
func (s *RAG) Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		return s.censored(p, req.Question, emit)
	}

	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}

	prm := params.Resolve(req, p.Options, s.defaults())
	results, err := s.retrieve(ctx, p, req.Question, prm)
	if err != nil {
		return nil, err
	}

	out := &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Sources:  rag.Sources(results, req.Lite),
		Project:  p.Name,
	}

	if p.Sandboxed && len(results) == 0 {
		out.Answer = s.censorship(p)
		if err := send(emit, out.Answer); err != nil {
			return nil, err
		}
		return out, nil
	}

	msgs := []models.ChatMessage{
		systemMessage(s.system(req.System, p)),
		userMessage(fmt.Sprintf(qaTemplate, rag.Context(results), req.Question)),
	}
	c, err := call(ctx, llm, msgs, emit)
	if err != nil {
		return nil, err
	}
	out.Answer = c.Content
	out.Tokens = tokensOf(c)

	if len(results) > 0 && out.Answer != "" {
		s.remember(ctx, p, req.Question, out.Answer)
	}

	if req.Eval && emit == nil {
		ev, err := s.evaluate(ctx, req.Question, out.Answer)
		if err != nil {
			return nil, err
		}
		out.Evaluation = ev
	}
	return out, nil
}

// remember stores the answer in the semantic cache when the project has
// one. Cache failures never fail the request.
func (s *RAG) remember(ctx context.Context, p *project.Project, question, answer string) {
	c, err := p.Cache(ctx)
	if err != nil || c == nil {
		if err != nil {
			log.Warn().Err(err).Str("project", p.Name).Msg("Cache unavailable")
		}
		return
	}
	if err := c.Add(ctx, question, answer); err != nil {
		log.Warn().Err(err).Str("project", p.Name).Msg("Failed to cache answer")
	}
}

// Chat answers one turn grounded on freshly retrieved context. The turn is
// always recorded, including the sandbox fallback.
func (s *RAG) Chat(ctx context.Context, p *project.Project, req models.ChatRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
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

	prm := params.Resolve(models.QuestionRequest{}, p.Options, s.defaults())
	results, err := s.retrieve(ctx, p, req.Question, prm)
	if err != nil {
		return nil, err
	}

	system := s.system("", p)
	past, err := sess.Seed(ctx, system)
	if err != nil {
		return nil, err
	}

	out := &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Sources:  rag.Sources(results, false),
		Project:  p.Name,
		ID:       sess.ID,
	}

	if p.Sandboxed && len(results) == 0 {
		out.Answer = s.censorship(p)
		if err := send(emit, out.Answer); err != nil {
			return nil, err
		}
	} else {
		msgs := make([]models.ChatMessage, 0, len(past)+2)
		msgs = append(msgs, systemMessage(fmt.Sprintf(chatContextTemplate, system, rag.Context(results))))
		msgs = append(msgs, history(past)...)
		msgs = append(msgs, userMessage(req.Question))

		c, err := call(ctx, llm, msgs, emit)
		if err != nil {
			return nil, err
		}
		out.Answer = c.Content
		out.Tokens = tokensOf(c)
	}

	if err := sess.AppendTurn(ctx, req.Question, out.Answer); err != nil {
		return nil, err
	}
	return out, nil
}
