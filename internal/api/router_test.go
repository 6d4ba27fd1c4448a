package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentoven/ragserve/internal/api"
	"github.com/agentoven/ragserve/internal/api/handlers"
	"github.com/agentoven/ragserve/internal/brain/braintest"
	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/agentoven/ragserve/internal/llm/llmtest"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (http.Handler, *braintest.Env) {
	t.Helper()
	env := braintest.New(t)
	h := handlers.New(env.Brain, dispatch.New(env.Brain, nil))
	return api.NewRouter(env.Brain.Config, h, nil, nil), env
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestProjectLifecycle(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("beep beep"))

	w := do(t, h, http.MethodPost, "/api/v1/projects", `{"name":"robot","type":"inference","llm":"stub"}`, "X-Team", "blue")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/projects", `{"name":"robot","type":"inference","llm":"stub"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/projects", "", "X-Team", "blue")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "blue", listed[0].Team)

	w = do(t, h, http.MethodGet, "/api/v1/projects", "", "X-Team", "red")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)

	w = do(t, h, http.MethodPatch, "/api/v1/projects/robot", `{"system":"You are a robot."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "You are a robot.", updated.System)

	w = do(t, h, http.MethodDelete, "/api/v1/projects/robot", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/projects/robot", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProject_Invalid(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad type", `{"name":"x","type":"oracle","llm":"stub"}`, http.StatusBadRequest},
		{"unknown llm", `{"name":"x","type":"inference","llm":"nope"}`, http.StatusNotFound},
		{"router without entrances", `{"name":"x","type":"router","llm":"stub"}`, http.StatusBadRequest},
		{"malformed", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/projects", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestQuestion_JSON(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("beep beep"))
	env.Project(t, models.Project{Name: "robot", Type: models.ProjectInference, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/robot/question", `{"question":"Say hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out models.InferenceOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "beep beep", out.Answer)
	assert.Equal(t, "robot", out.Project)
}

func TestQuestion_Validation(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))
	env.Project(t, models.Project{Name: "robot", Type: models.ProjectInference, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/robot/question", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question is required")

	w = do(t, h, http.MethodPost, "/api/v1/projects/robot/question", `{"question":"hi","k":99}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/projects/ghost/question", `{"question":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuestion_SSEFraming(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("beep beep"))
	env.Project(t, models.Project{Name: "robot", Type: models.ProjectInference, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/robot/question", `{"question":"Say hi","stream":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSuffix(w.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.Equal(t, `data: {"text":"beep"}`, frames[0])
	assert.Equal(t, `data: {"text":" beep"}`, frames[1])
	require.True(t, strings.HasPrefix(frames[2], "data: "))
	var out models.InferenceOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &out))
	assert.Equal(t, "beep beep", out.Answer)
	assert.Equal(t, "event: close", frames[3])
}

func TestQuestion_SSEErrorBeforeFirstFrameIsJSON(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))
	env.Project(t, models.Project{Name: "eyes", Type: models.ProjectVision, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/eyes/question", `{"question":"what?","stream":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestChat_UnsupportedType(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))
	env.Project(t, models.Project{Name: "eyes", Type: models.ProjectVision, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/eyes/chat", `{"question":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmbeddings_IngestSearchDelete(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))
	env.Project(t, models.Project{Name: "kb", Type: models.ProjectRAG, LLM: "stub"})

	w := do(t, h, http.MethodPost, "/api/v1/projects/kb/embeddings/ingest/text",
		`{"text":"Paris is the capital of France.","source":"geo.md","keywords":"paris"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res models.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.ChunksCreated)

	w = do(t, h, http.MethodGet, "/api/v1/projects/kb/embeddings/search?text=capital+of+France&k=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sources []models.Source
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, "geo.md", sources[0].Source)
	assert.Equal(t, "paris", sources[0].Keywords)

	w = do(t, h, http.MethodDelete, "/api/v1/projects/kb/embeddings/source/geo.md", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":1`)

	w = do(t, h, http.MethodGet, "/api/v1/projects/kb/embeddings/search?text=capital", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sources))
	assert.Empty(t, sources)
}

func TestEmbeddings_RejectsNonRAG(t *testing.T) {
	h, env := newServer(t)
	env.LLM("stub", llmtest.New("x"))
	env.Project(t, models.Project{Name: "robot", Type: models.ProjectInference, LLM: "stub"})

	w := do(t, h, http.MethodGet, "/api/v1/projects/robot/embeddings/search?text=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMs_CreateListDelete(t *testing.T) {
	h, _ := newServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/llms", `{"name":"local","class":"ollama","model":"llama3"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/llms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var llms []models.LLMDefinition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &llms))
	var found bool
	for _, l := range llms {
		if l.Name == "local" {
			found = true
			assert.True(t, l.Dynamic)
			assert.Equal(t, models.LLMTypeChat, l.Type)
		}
	}
	assert.True(t, found)

	w = do(t, h, http.MethodPost, "/api/v1/llms", `{"name":"bad","class":"mystery","model":"m"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/llms/local", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodDelete, "/api/v1/llms/local", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTools(t *testing.T) {
	h, _ := newServer(t)
	w := do(t, h, http.MethodGet, "/api/v1/tools/agent", "")
	require.Equal(t, http.StatusOK, w.Code)
	var infos []models.ToolInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	names := make([]string, 0, len(infos))
	for _, i := range infos {
		names = append(names, i.Name)
	}
	assert.Contains(t, names, "calculator")
	assert.Contains(t, names, "datetime")
}
