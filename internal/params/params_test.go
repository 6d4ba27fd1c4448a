package params_test

import (
	"testing"

	"github.com/agentoven/ragserve/internal/params"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestResolve_Precedence(t *testing.T) {
	def := params.Defaults{K: 4, Score: 0}

	tests := []struct {
		name string
		req  models.QuestionRequest
		opts models.ProjectOptions
		want params.Retrieval
	}{
		{"global defaults", models.QuestionRequest{}, models.ProjectOptions{}, params.Retrieval{K: 4, Score: 0}},
		{"project overrides global", models.QuestionRequest{}, models.ProjectOptions{K: ptr(6), Score: ptr(0.3), LLMRerank: true}, params.Retrieval{K: 6, Score: 0.3, LLMRerank: true}},
		{"request overrides project", models.QuestionRequest{K: ptr(2), Score: ptr(0.8), LLMRerank: ptr(false), ColbertRerank: ptr(true)}, models.ProjectOptions{K: ptr(6), Score: ptr(0.3), LLMRerank: true}, params.Retrieval{K: 2, Score: 0.8, ColbertRerank: true}},
		{"explicit zero score wins", models.QuestionRequest{Score: ptr(0.0)}, models.ProjectOptions{Score: ptr(0.5)}, params.Retrieval{K: 4, Score: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, params.Resolve(tt.req, tt.opts, def))
		})
	}
}

func TestFetchK(t *testing.T) {
	assert.Equal(t, 4, params.Retrieval{K: 4}.FetchK())
	assert.Equal(t, 8, params.Retrieval{K: 4, ColbertRerank: true}.FetchK())
	assert.Equal(t, 8, params.Retrieval{K: 4, LLMRerank: true}.FetchK())
}

func TestSystem(t *testing.T) {
	assert.Equal(t, "req", params.System("req", "proj", "global"))
	assert.Equal(t, "proj", params.System("", "proj", "global"))
	assert.Equal(t, "global", params.System("", "", "global"))
}
