package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentoven/ragserve/pkg/models"
)

const evalPrompt = `You are grading whether an answer is relevant to a question.
Score relevancy from 0 to 1, where 1 means the answer fully and directly addresses the question.
Respond only with JSON of the form {"reason": "<one sentence>", "score": <number>}.

Question: %s

Answer: %s`

// evaluate grades answer relevancy with the configured evaluator LLM.
func (s base) evaluate(ctx context.Context, question, answer string) (*models.Evaluation, error) {
	llm, err := s.brain.LLM(ctx, s.brain.Config.Inference.EvalLLM)
	if err != nil {
		return nil, fmt.Errorf("eval llm: %w", err)
	}
	c, err := llm.Chat(ctx, []models.ChatMessage{userMessage(fmt.Sprintf(evalPrompt, question, answer))})
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}
	return ParseEvaluation(c.Content)
}

// ParseEvaluation reads the evaluator's JSON verdict, tolerating text or
// code fences around it. Scores are clamped to [0,1].
func ParseEvaluation(reply string) (*models.Evaluation, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("evaluator returned no verdict: %q", reply)
	}
	var ev models.Evaluation
	if err := json.Unmarshal([]byte(reply[start:end+1]), &ev); err != nil {
		return nil, fmt.Errorf("parse evaluator verdict: %w", err)
	}
	ev.Score = min(max(ev.Score, 0), 1)
	return &ev, nil
}
