package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/tools"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// NoToolsInstruction is appended to the question when the agent has no
// tools to call.
const NoToolsInstruction = "\nYou have no tools available. Answer directly from your own knowledge."

// AgentApology is the exhausted answer of a project without a censorship
// message.
const AgentApology = "I'm sorry, I could not finish working on your request."

const agentProtocol = `

You can use the following tools:
%s
To call tools, reply with only this JSON and nothing else:
{"tool_calls":[{"name":"<tool name>","arguments":{...}}]}
Tool results are sent back to you. When you have the final answer, reply with plain text.`

// AgentStatus is the terminal state of an agent run.
type AgentStatus string

const (
	AgentDone      AgentStatus = "done"
	AgentExhausted AgentStatus = "exhausted"
)

// AgentResult is the outcome of one reason-act loop.
type AgentResult struct {
	Status     AgentStatus
	Answer     string
	Steps      []models.ReasoningStep
	Tokens     models.Tokens
	Iterations int
}

// ToolCall is one tool invocation proposed by the model.
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolCallReply struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ParseToolCalls reads a tool-call reply. It reports false when reply is a
// final answer.
func ParseToolCalls(reply string) ([]ToolCall, bool) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var r toolCallReply
	if err := json.Unmarshal([]byte(s), &r); err != nil || len(r.ToolCalls) == 0 {
		return nil, false
	}
	return r.ToolCalls, true
}

// Agent runs a tool-using reason-act loop.
type Agent struct{ base }

// NewAgent creates the agent strategy.
func NewAgent(b *brain.Brain) *Agent { return &Agent{base{brain: b}} }

// toolset resolves the built-in tools allowed by the project plus the
// tools of every configured MCP server. The returned closer ends the MCP
// sessions.
func (s *Agent) toolset(ctx context.Context, p *project.Project) (map[string]contracts.Tool, func(), error) {
	set := make(map[string]contracts.Tool)
	for _, t := range s.brain.Tools.Filter(p.Options.Tools) {
		set[t.Name()] = t
	}

	var remotes []*tools.RemoteSet
	closeAll := func() {
		for _, r := range remotes {
			r.Close()
		}
	}
	for _, srv := range p.Options.MCPServers {
		r, err := tools.FetchRemote(ctx, s.brain.Dial, srv)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		remotes = append(remotes, r)
		for _, t := range r.Tools {
			set[t.Name()] = t
		}
	}
	return set, closeAll, nil
}

func describeTools(set map[string]contracts.Tool) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		t := set[name]
		schema, _ := json.Marshal(t.Schema())
		fmt.Fprintf(&sb, "- %s: %s Arguments schema: %s\n", name, t.Description(), schema)
	}
	return sb.String()
}

// Run executes the loop for question on top of past messages. It stops
// with AgentExhausted once the iteration cap is passed. Exhaustion is
// never an error.
func (s *Agent) Run(ctx context.Context, p *project.Project, system string, past []models.ChatMessage, question string) (*AgentResult, error) {
	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}
	set, closeTools, err := s.toolset(ctx, p)
	if err != nil {
		return nil, err
	}
	defer closeTools()

	if len(set) == 0 {
		question += NoToolsInstruction
	} else {
		system += fmt.Sprintf(agentProtocol, describeTools(set))
	}

	msgs := make([]models.ChatMessage, 0, len(past)+2)
	msgs = append(msgs, systemMessage(system))
	msgs = append(msgs, past...)
	msgs = append(msgs, userMessage(question))

	maxIter := max(p.Options.MaxIterations, s.brain.Config.Inference.AgentMaxIterations)
	res := &AgentResult{Steps: []models.ReasoningStep{}}

	for res.Iterations < maxIter {
		res.Iterations++
		c, err := llm.Chat(ctx, msgs)
		if err != nil {
			return nil, err
		}
		addTokens(&res.Tokens, c)

		calls, ok := ParseToolCalls(c.Content)
		if !ok {
			res.Status = AgentDone
			res.Answer = strings.TrimSpace(c.Content)
			return res, nil
		}

		msgs = append(msgs, models.ChatMessage{Role: models.RoleAssistant, Content: c.Content})
		for _, tc := range calls {
			step := s.invoke(ctx, set, tc)
			res.Steps = append(res.Steps, step)
			msgs = append(msgs, userMessage(fmt.Sprintf("Tool %s returned:\n%s", step.Tool, step.Output)))
		}
	}

	log.Warn().Str("project", p.Name).Int("iterations", res.Iterations).Msg("Agent exhausted its iterations")
	res.Status = AgentExhausted
	res.Answer = p.CensorshipOr(AgentApology)
	res.Steps = nil
	return res, nil
}

// invoke runs one tool call. Tool failures are reported back to the model
// as the step output.
func (s *Agent) invoke(ctx context.Context, set map[string]contracts.Tool, tc ToolCall) models.ReasoningStep {
	input, _ := json.Marshal(tc.Arguments)
	step := models.ReasoningStep{Tool: tc.Name, Input: string(input)}

	t, ok := set[tc.Name]
	if !ok {
		step.Output = fmt.Sprintf("Error: unknown tool %q", tc.Name)
		return step
	}
	out, err := t.Call(ctx, tc.Arguments)
	if err != nil {
		step.Output = "Error: " + err.Error()
		return step
	}
	step.Output = out
	return step
}

func (s *Agent) output(p *project.Project, question string, res *AgentResult) *models.InferenceOutput {
	out := &models.InferenceOutput{
		Question: question,
		Type:     p.Type,
		Answer:   res.Answer,
		Sources:  []models.Source{},
		Tokens:   res.Tokens,
		Project:  p.Name,
	}
	if res.Status == AgentDone {
		out.Reasoning = &models.AgentReasoning{Output: res.Answer, Steps: res.Steps}
	}
	return out
}

// Question runs the agent on a single question. When streaming, the final
// answer is emitted once the loop ends.
func (s *Agent) Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		return s.censored(p, req.Question, emit)
	}

	res, err := s.Run(ctx, p, s.system(req.System, p), nil, req.Question)
	if err != nil {
		return nil, err
	}
	if err := send(emit, res.Answer); err != nil {
		return nil, err
	}
	return s.output(p, req.Question, res), nil
}

// Chat runs the agent with the session history and records the turn.
func (s *Agent) Chat(ctx context.Context, p *project.Project, req models.ChatRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
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

	system := s.system("", p)
	past, err := sess.Seed(ctx, system)
	if err != nil {
		return nil, err
	}
	res, err := s.Run(ctx, p, system, history(past), req.Question)
	if err != nil {
		return nil, err
	}
	if err := send(emit, res.Answer); err != nil {
		return nil, err
	}
	if err := sess.AppendTurn(ctx, req.Question, res.Answer); err != nil {
		return nil, err
	}
	out := s.output(p, req.Question, res)
	out.ID = sess.ID
	return out, nil
}
