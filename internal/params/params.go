// Package params resolves per-request retrieval parameters. Every value
// follows the same precedence: request, then project options, then the
// global default.
package params

import "github.com/agentoven/ragserve/pkg/models"

// Retrieval is the resolved parameter set of one RAG request.
type Retrieval struct {
	K             int
	Score         float64
	ColbertRerank bool
	LLMRerank     bool
}

// Defaults are the global fallbacks.
type Defaults struct {
	K     int
	Score float64
}

// Reranking reports whether any rerank stage is enabled.
func (r Retrieval) Reranking() bool { return r.ColbertRerank || r.LLMRerank }

// FetchK is the number of candidates to pull from the index: twice K when
// a rerank stage will cut the list down.
func (r Retrieval) FetchK() int {
	if r.Reranking() {
		return r.K * 2
	}
	return r.K
}

// Resolve applies the precedence chain. It has no side effects.
func Resolve(req models.QuestionRequest, opts models.ProjectOptions, def Defaults) Retrieval {
	out := Retrieval{
		K:             def.K,
		Score:         def.Score,
		ColbertRerank: opts.ColbertRerank,
		LLMRerank:     opts.LLMRerank,
	}
	if opts.K != nil {
		out.K = *opts.K
	}
	if opts.Score != nil {
		out.Score = *opts.Score
	}
	if req.K != nil {
		out.K = *req.K
	}
	if req.Score != nil {
		out.Score = *req.Score
	}
	if req.ColbertRerank != nil {
		out.ColbertRerank = *req.ColbertRerank
	}
	if req.LLMRerank != nil {
		out.LLMRerank = *req.LLMRerank
	}
	if out.K < 1 {
		out.K = 1
	}
	return out
}

// System picks the system prompt: request, then project, then global.
func System(request, project, global string) string {
	switch {
	case request != "":
		return request
	case project != "":
		return project
	default:
		return global
	}
}
