package strategies_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentoven/ragserve/internal/brain/braintest"
	"github.com/agentoven/ragserve/internal/llm/llmtest"
	"github.com/agentoven/ragserve/internal/rag"
	"github.com/agentoven/ragserve/internal/sqlqa"
	"github.com/agentoven/ragserve/internal/strategies"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitThink(t *testing.T) {
	visible, reasoning := strategies.SplitThink("<think>\nweigh options\n</think>\n\nThe answer is 4.")
	assert.Equal(t, "The answer is 4.", visible)
	assert.Equal(t, "weigh options", reasoning)

	visible, reasoning = strategies.SplitThink("plain")
	assert.Equal(t, "plain", visible)
	assert.Empty(t, reasoning)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		reply string
		want  int
		ok    bool
	}{
		{"1", 0, true},
		{"Choice 2 fits best", 1, true},
		{"(3)", 0, false},
		{"0", 0, false},
		{"none of them", 0, false},
	}
	for _, tt := range tests {
		got, err := strategies.ParseChoice(tt.reply, 2)
		if !tt.ok {
			assert.Error(t, err, tt.reply)
			continue
		}
		require.NoError(t, err, tt.reply)
		assert.Equal(t, tt.want, got, tt.reply)
	}
}

func TestParseToolCalls(t *testing.T) {
	calls, ok := strategies.ParseToolCalls("```json\n{\"tool_calls\":[{\"name\":\"calculator\",\"arguments\":{\"expression\":\"1+1\"}}]}\n```")
	require.True(t, ok)
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.Equal(t, "1+1", calls[0].Arguments["expression"])

	_, ok = strategies.ParseToolCalls("The answer is 2.")
	assert.False(t, ok)
	_, ok = strategies.ParseToolCalls(`{"tool_calls":[]}`)
	assert.False(t, ok)
}

func TestParseEvaluation(t *testing.T) {
	ev, err := strategies.ParseEvaluation("Sure.\n{\"reason\": \"on topic\", \"score\": 1.4}")
	require.NoError(t, err)
	assert.Equal(t, "on topic", ev.Reason)
	assert.Equal(t, 1.0, ev.Score)

	_, err = strategies.ParseEvaluation("no json")
	assert.Error(t, err)
}

func TestRAG_SandboxedWithoutSourcesSkipsLLM(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New("should not be used")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "kb", Type: models.ProjectRAG, LLM: "stub", Sandboxed: true, Censorship: "Not in my documents."})

	p, err := env.Brain.Project(ctx, "kb")
	require.NoError(t, err)
	out, err := strategies.NewRAG(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "What is the meaning of life?"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Not in my documents.", out.Answer)
	assert.Empty(t, out.Sources)
	assert.Equal(t, 0, stub.CallCount())
}

func TestRAG_UsesQATemplate(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New("Paris.")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "kb", Type: models.ProjectRAG, LLM: "stub"})

	p, err := env.Brain.Project(ctx, "kb")
	require.NoError(t, err)
	idx, emb, err := p.Index(ctx)
	require.NoError(t, err)
	_, err = rag.NewIngester(emb, idx).IngestText(ctx, p.Collection(), models.IngestTextRequest{
		Text: "Paris is the capital of France.", Source: "geo.md",
	})
	require.NoError(t, err)

	out, err := strategies.NewRAG(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "capital of France?", Lite: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Paris.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "geo.md", out.Sources[0].Source)
	assert.Empty(t, out.Sources[0].Content)
	assert.Equal(t, "Context:\nParis is the capital of France.\n\nQuery: capital of France?\n\nAnswer:", stub.LastUser())
}

func TestAgent_CallsToolThenAnswers(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New(`{"tool_calls":[{"name":"calculator","arguments":{"expression":"2+3"}}]}`, "The answer is 5.")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "calc", Type: models.ProjectAgent, LLM: "stub", Options: models.ProjectOptions{Tools: []string{"calculator"}}})

	p, err := env.Brain.Project(ctx, "calc")
	require.NoError(t, err)
	out, err := strategies.NewAgent(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "What is 2+3?"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "The answer is 5.", out.Answer)
	reasoning, ok := out.Reasoning.(*models.AgentReasoning)
	require.True(t, ok)
	require.Len(t, reasoning.Steps, 1)
	assert.Equal(t, "calculator", reasoning.Steps[0].Tool)
	assert.Equal(t, "5", reasoning.Steps[0].Output)
	assert.Equal(t, "Tool calculator returned:\n5", stub.LastUser())
	assert.NotContains(t, stub.Calls()[0][1].Content, strategies.NoToolsInstruction)
}

func TestAgent_ExhaustionIsNotAnError(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New(`{"tool_calls":[{"name":"datetime","arguments":{}}]}`)
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "loop", Type: models.ProjectAgent, LLM: "stub", Options: models.ProjectOptions{Tools: []string{"datetime"}, MaxIterations: 2}})

	p, err := env.Brain.Project(ctx, "loop")
	require.NoError(t, err)
	res, err := strategies.NewAgent(env.Brain).Run(ctx, p, "sys", nil, "What time is it?")
	require.NoError(t, err)

	assert.Equal(t, strategies.AgentExhausted, res.Status)
	assert.Equal(t, strategies.AgentApology, res.Answer)
	assert.Empty(t, res.Steps)
	// The global cap of 5 wins over the project's 2.
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, 5, stub.CallCount())
}

func TestVision_EncodesRawBase64(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New("A cat.")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "eyes", Type: models.ProjectVision, LLM: "stub"})

	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000000000000000"))
	p, err := env.Brain.Project(ctx, "eyes")
	require.NoError(t, err)
	out, err := strategies.NewVision(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "What is this?", Image: png, Negative: "colors"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "A cat.", out.Answer)
	assert.Equal(t, "What is this?\n\nDo not include the following in your answer: colors", stub.LastUser())
	images := stub.Images()
	require.Len(t, images, 1)
	assert.True(t, strings.HasPrefix(images[0][0], "data:image/png;base64,"))
}

func TestVision_RejectsNonPublicImageURL(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New("should not run")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "eyes", Type: models.ProjectVision, LLM: "stub"})
	p, err := env.Brain.Project(ctx, "eyes")
	require.NoError(t, err)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer srv.Close()

	vision := strategies.NewVision(env.Brain)
	for _, url := range []string{
		srv.URL + "/cat.png",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.1/cat.png",
		"http://[::1]:9/cat.png",
		"http://0.0.0.0:9/cat.png",
	} {
		_, err := vision.Question(ctx, p, models.QuestionRequest{Question: "What is this?", Image: url}, nil)
		assert.ErrorIs(t, err, strategies.ErrBlockedAddress, url)
	}
	assert.Zero(t, hits)
	assert.Zero(t, stub.CallCount())
}

func TestVisionPrompt(t *testing.T) {
	assert.Equal(t, "Describe.", strategies.VisionPrompt("Describe.", "  "))
	assert.Contains(t, strategies.VisionPrompt("Describe.", "faces"), "faces")
}

func TestRAGSQL_AnswersFromRows(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "shop.db")
	db, err := sqlqa.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Exec(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`))
	require.NoError(t, db.Exec(ctx, `INSERT INTO customers (name) VALUES ('Ana'), ('Rui')`))
	require.NoError(t, db.Close())

	env := braintest.New(t)
	stub := llmtest.New("```sql\nSELECT name FROM customers ORDER BY name\n```", "Ana and Rui.")
	env.LLM("stub", stub)
	env.Project(t, models.Project{Name: "shop", Type: models.ProjectRAGSQL, LLM: "stub", Options: models.ProjectOptions{Connection: dsn}})

	p, err := env.Brain.Project(ctx, "shop")
	require.NoError(t, err)
	out, err := strategies.NewRAGSQL(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "Who are the customers?"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Ana and Rui.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "SELECT name FROM customers ORDER BY name", out.Sources[0].Source)
	assert.Contains(t, stub.LastUser(), "name\nAna\nRui")
	assert.Contains(t, stub.Calls()[0][1].Content, "Table 'customers' has columns")
}

func TestInference_GuardrailBlocksBeforeLLM(t *testing.T) {
	ctx := context.Background()
	env := braintest.New(t)
	stub := llmtest.New("unused")
	env.LLM("stub", stub)
	env.Project(t, models.Project{
		Name: "short", Type: models.ProjectInference, LLM: "stub",
		Options: models.ProjectOptions{Guardrails: []models.Guardrail{{Kind: models.GuardrailMaxLength, Config: map[string]interface{}{"max_characters": float64(5)}}}},
	})

	p, err := env.Brain.Project(ctx, "short")
	require.NoError(t, err)
	out, err := strategies.NewInference(env.Brain).Question(ctx, p, models.QuestionRequest{Question: "far too long"}, nil)
	require.NoError(t, err)

	assert.True(t, out.Guard)
	assert.Equal(t, braintest.DefaultCensorship, out.Answer)
	assert.Equal(t, 0, stub.CallCount())
}
