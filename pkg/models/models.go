package models

import (
	"time"
)

// ── Project ──────────────────────────────────────────────────

// ProjectType selects the inference strategy a project dispatches to.
type ProjectType string

const (
	ProjectRAG       ProjectType = "rag"
	ProjectInference ProjectType = "inference"
	ProjectRouter    ProjectType = "router"
	ProjectRAGSQL    ProjectType = "ragsql"
	ProjectVision    ProjectType = "vision"
	ProjectAgent     ProjectType = "agent"
)

// ProjectTypes lists every supported project type.
var ProjectTypes = []ProjectType{
	ProjectRAG, ProjectInference, ProjectRouter, ProjectRAGSQL, ProjectVision, ProjectAgent,
}

// Valid reports whether t is one of the known project types.
func (t ProjectType) Valid() bool {
	for _, known := range ProjectTypes {
		if t == known {
			return true
		}
	}
	return false
}

// VectorStoreBackend identifies a vector index implementation.
type VectorStoreBackend string

const (
	VectorStoreEmbedded VectorStoreBackend = "embedded"
	VectorStorePgvector VectorStoreBackend = "pgvector"
)

// ProjectOptionsVersion is bumped whenever ProjectOptions gains a field that
// changes the meaning of an existing row.
const ProjectOptionsVersion = 2

// ProjectOptions are the per-project tunables. Pointer fields distinguish
// "unset, use the global default" from an explicit zero value.
type ProjectOptions struct {
	Version        int         `json:"version"`
	Logging        bool        `json:"logging"`
	ColbertRerank  bool        `json:"colbert_rerank"`
	LLMRerank      bool        `json:"llm_rerank"`
	Cache          bool        `json:"cache"`
	CacheThreshold *float64    `json:"cache_threshold,omitempty"`
	K              *int        `json:"k,omitempty"`
	Score          *float64    `json:"score,omitempty"`
	Tables         []string    `json:"tables,omitempty"`
	Tools          []string    `json:"tools,omitempty"`
	MaxIterations  int         `json:"max_iterations,omitempty"`
	MCPServers     []MCPServer `json:"mcp_servers,omitempty"`
	Connection     string      `json:"connection,omitempty"`
	Guardrails     []Guardrail `json:"guardrails,omitempty"`
}

// MCPServer is a remote tool server an agent project may call.
// An empty Tools list allows every tool the server advertises.
type MCPServer struct {
	Host  string   `json:"host"`
	Tools []string `json:"tools,omitempty"`
}

// Entrance is one routing choice of a router project.
type Entrance struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Destination string `json:"destination"`
}

// Project is a persisted configuration binding an LLM, an optional
// embedding model and vector store, and a behavior type.
type Project struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	Type             ProjectType        `json:"type"`
	LLM              string             `json:"llm"`
	Embeddings       string             `json:"embeddings,omitempty"`
	VectorStore      VectorStoreBackend `json:"vectorstore,omitempty"`
	System           string             `json:"system,omitempty"`
	Censorship       string             `json:"censorship,omitempty"`
	Sandboxed        bool               `json:"sandboxed"`
	Guard            string             `json:"guard,omitempty"`
	Options          ProjectOptions     `json:"options"`
	Entrances        []Entrance         `json:"entrances,omitempty"`
	Public           bool               `json:"public"`
	Team             string             `json:"team,omitempty"`
	HumanName        string             `json:"human_name,omitempty"`
	HumanDescription string             `json:"human_description,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ProjectUpdate carries the editable fields of a project. Name and type are
// immutable after creation.
type ProjectUpdate struct {
	LLM              *string         `json:"llm,omitempty"`
	Embeddings       *string         `json:"embeddings,omitempty"`
	System           *string         `json:"system,omitempty"`
	Censorship       *string         `json:"censorship,omitempty"`
	Sandboxed        *bool           `json:"sandboxed,omitempty"`
	Guard            *string         `json:"guard,omitempty"`
	Options          *ProjectOptions `json:"options,omitempty"`
	Entrances        []Entrance      `json:"entrances,omitempty"`
	Public           *bool           `json:"public,omitempty"`
	HumanName        *string         `json:"human_name,omitempty"`
	HumanDescription *string         `json:"human_description,omitempty"`
}

// ── Guardrails ───────────────────────────────────────────────

type GuardrailKind string

const (
	GuardrailContentFilter   GuardrailKind = "content_filter"
	GuardrailPII             GuardrailKind = "pii_detection"
	GuardrailRegexFilter     GuardrailKind = "regex_filter"
	GuardrailMaxLength       GuardrailKind = "max_length"
	GuardrailPromptInjection GuardrailKind = "prompt_injection"
)

// Guardrail is a heuristic input rule evaluated before the LLM guard.
type Guardrail struct {
	Kind   GuardrailKind          `json:"kind"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// GuardrailResult is the outcome of one guardrail evaluation.
type GuardrailResult struct {
	Kind    GuardrailKind `json:"kind"`
	Passed  bool          `json:"passed"`
	Message string        `json:"message,omitempty"`
}

// ── Requests ─────────────────────────────────────────────────

// QuestionRequest is a stateless question against a project.
type QuestionRequest struct {
	Question      string   `json:"question" validate:"required"`
	Stream        bool     `json:"stream,omitempty"`
	System        string   `json:"system,omitempty"`
	K             *int     `json:"k,omitempty" validate:"omitempty,min=1,max=25"`
	Score         *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=1"`
	ColbertRerank *bool    `json:"colbert_rerank,omitempty"`
	LLMRerank     *bool    `json:"llm_rerank,omitempty"`
	Tables        []string `json:"tables,omitempty"`
	Image         string   `json:"image,omitempty"`
	Negative      string   `json:"negative,omitempty"`
	Lite          bool     `json:"lite,omitempty"`
	Eval          bool     `json:"eval,omitempty"`
}

// ChatRequest is one turn of a multi-turn conversation.
type ChatRequest struct {
	Question string `json:"question" validate:"required"`
	Stream   bool   `json:"stream,omitempty"`
	ID       string `json:"id,omitempty"`
}

// ── Inference Output ─────────────────────────────────────────

// Source is one retrieved passage backing an answer.
type Source struct {
	ID       string  `json:"id,omitempty"`
	Source   string  `json:"source"`
	Keywords string  `json:"keywords,omitempty"`
	Content  string  `json:"content,omitempty"`
	Score    float64 `json:"score"`
}

// Tokens counts the tokens consumed by one request.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Evaluation is the answer-relevancy verdict of the evaluator LLM.
type Evaluation struct {
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

// ReasoningStep is one tool invocation of an agent trajectory.
type ReasoningStep struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// AgentReasoning is the trace attached to an agent answer.
type AgentReasoning struct {
	Output string          `json:"output"`
	Steps  []ReasoningStep `json:"steps"`
}

// InferenceOutput is the uniform response envelope of every strategy.
type InferenceOutput struct {
	Question   string      `json:"question"`
	Type       ProjectType `json:"type"`
	Answer     string      `json:"answer"`
	Sources    []Source    `json:"sources"`
	Guard      bool        `json:"guard"`
	Tokens     Tokens      `json:"tokens"`
	Project    string      `json:"project"`
	ID         string      `json:"id,omitempty"`
	Reasoning  interface{} `json:"reasoning,omitempty"` // string or *AgentReasoning
	Evaluation *Evaluation `json:"evaluation,omitempty"`
	Cached     bool        `json:"cached,omitempty"`
}

// ── LLM ──────────────────────────────────────────────────────

type LLMClass string

const (
	LLMClassOpenAI    LLMClass = "openai"
	LLMClassOllama    LLMClass = "ollama"
	LLMClassAnthropic LLMClass = "anthropic"
)

type LLMType string

const (
	LLMTypeChat   LLMType = "chat"
	LLMTypeQA     LLMType = "qa"
	LLMTypeVision LLMType = "vision"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// LLMDefinition describes how to build one named LLM client. Costs are USD
// per 1K tokens.
type LLMDefinition struct {
	Name          string    `json:"name"`
	Class         LLMClass  `json:"class"`
	Model         string    `json:"model"`
	BaseURL       string    `json:"base_url,omitempty"`
	APIKeyEnv     string    `json:"api_key_env,omitempty"`
	Type          LLMType   `json:"type"`
	Privacy       Privacy   `json:"privacy"`
	ContextWindow int       `json:"context_window,omitempty"`
	InputCost     float64   `json:"input_cost"`
	OutputCost    float64   `json:"output_cost"`
	Description   string    `json:"description,omitempty"`
	Dynamic       bool      `json:"dynamic"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// EmbeddingDefinition describes one named embedding model.
type EmbeddingDefinition struct {
	Name       string   `json:"name"`
	Class      LLMClass `json:"class"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
	Privacy    Privacy  `json:"privacy"`
}

// ChatMessage is one role-tagged message exchanged with an LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ── Accounting ───────────────────────────────────────────────

// InferenceLog is one accounting row persisted per request.
type InferenceLog struct {
	ID           string      `json:"id"`
	Project      string      `json:"project"`
	Type         ProjectType `json:"type"`
	LLM          string      `json:"llm"`
	Team         string      `json:"team,omitempty"`
	Question     string      `json:"question"`
	Answer       string      `json:"answer"`
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
	InputCost    float64     `json:"input_cost"`
	OutputCost   float64     `json:"output_cost"`
	LatencyMs    int64       `json:"latency_ms"`
	Guard        bool        `json:"guard"`
	Cached       bool        `json:"cached"`
	Date         time.Time   `json:"date"`
}

// ── RAG ──────────────────────────────────────────────────────

// IngestTextRequest adds a block of text to a RAG project's index.
type IngestTextRequest struct {
	Text         string `json:"text" validate:"required"`
	Source       string `json:"source" validate:"required"`
	Keywords     string `json:"keywords,omitempty"`
	ChunkSize    int    `json:"chunk_size,omitempty" validate:"omitempty,min=32,max=8192"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" validate:"omitempty,min=0"`
}

// IngestResult is the outcome of an ingestion.
type IngestResult struct {
	Source        string `json:"source"`
	ChunksCreated int    `json:"chunks_created"`
	VectorsStored int    `json:"vectors_stored"`
	LatencyMs     int64  `json:"latency_ms"`
}

// VectorDoc is a document stored in the vector index.
type VectorDoc struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Vector     []float64         `json:"vector,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SearchResult is a single vector search result. Score is a similarity in
// [0,1] (higher is closer); Distance is the backend's L2 distance.
type SearchResult struct {
	Doc      VectorDoc `json:"doc"`
	Score    float64   `json:"score"`
	Distance float64   `json:"distance"`
}

// Metadata keys carried by every indexed chunk.
const (
	MetaSource   = "source"
	MetaKeywords = "keywords"
	MetaAnswer   = "answer"
)

// ── Tools ────────────────────────────────────────────────────

// ToolInfo describes one tool available to agent projects.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
	Origin      string                 `json:"origin,omitempty"` // "builtin" or the MCP host
}
