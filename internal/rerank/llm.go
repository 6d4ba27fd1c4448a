package rerank

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

const judgePrompt = `A list of documents is shown below. Each document has a number next to it along with its content. A question is also provided.
Respond with the numbers of the documents you should consult to answer the question, in order of relevance, as well as the relevance score. The relevance score is a number from 1-10 based on how relevant you think the document is to the question.
Do not include any documents that are not relevant to the question.
Example format:
Doc: 9, Relevance: 7
Doc: 3, Relevance: 4

%s
Question: %s
Answer:
`

var judgeLine = regexp.MustCompile(`(?i)doc(?:ument)?\s*:?\s*(\d+)\s*,\s*relevance\s*:?\s*(\d+(?:\.\d+)?)`)

// LLMJudge asks an LLM to pick and score the relevant candidates.
type LLMJudge struct {
	llm contracts.LLM
}

// NewLLMJudge binds the judge to an LLM.
func NewLLMJudge(llm contracts.LLM) *LLMJudge { return &LLMJudge{llm: llm} }

// Rerank keeps the documents the judge named, ordered by its relevance
// score scaled to [0,1]. Documents the judge left out are dropped.
func (j *LLMJudge) Rerank(ctx context.Context, query string, candidates []models.SearchResult, topN int) ([]models.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var docs strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&docs, "Document %d:\n%s\n\n", i+1, c.Doc.Content)
	}

	out, err := j.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: fmt.Sprintf(judgePrompt, docs.String(), query)},
	})
	if err != nil {
		return nil, fmt.Errorf("llm rerank: %w", err)
	}

	seen := make(map[int]bool)
	var ranked []models.SearchResult
	for _, m := range judgeLine.FindAllStringSubmatch(out.Content, -1) {
		n, _ := strconv.Atoi(m[1])
		rel, _ := strconv.ParseFloat(m[2], 64)
		idx := n - 1
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		c := candidates[idx]
		c.Score = min(rel, 10) / 10
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}
