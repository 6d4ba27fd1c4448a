// Package dispatch is the entry point of the inference core. It checks the
// semantic cache, selects the strategy for the project type, follows
// router hops and publishes accounting events.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/strategies"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRouterDepth bounds the number of router hops of one request.
const MaxRouterDepth = 8

// Publisher receives accounting rows. Publishing must not block.
type Publisher interface {
	PublishInference(entry models.InferenceLog)
}

// Dispatcher routes requests to strategies.
type Dispatcher struct {
	brain  *brain.Brain
	events Publisher
	tracer trace.Tracer

	inference *strategies.Inference
	rag       *strategies.RAG
	ragsql    *strategies.RAGSQL
	router    *strategies.Router
	agent     *strategies.Agent
	vision    *strategies.Vision
}

// New creates a dispatcher. events may be nil to disable accounting.
func New(b *brain.Brain, events Publisher) *Dispatcher {
	return &Dispatcher{
		brain:     b,
		events:    events,
		tracer:    otel.Tracer("ragserve/dispatch"),
		inference: strategies.NewInference(b),
		rag:       strategies.NewRAG(b),
		ragsql:    strategies.NewRAGSQL(b),
		router:    strategies.NewRouter(b),
		agent:     strategies.NewAgent(b),
		vision:    strategies.NewVision(b),
	}
}

// QuestionMain answers a stateless question against the named project.
// emit is nil for buffered output.
func (d *Dispatcher) QuestionMain(ctx context.Context, name string, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	return d.question(ctx, name, req, emit, nil)
}

func (d *Dispatcher) question(ctx context.Context, name string, req models.QuestionRequest, emit contracts.DeltaFunc, visited []string) (*models.InferenceOutput, error) {
	for _, v := range visited {
		if v == name {
			return nil, fmt.Errorf("%w: %s -> %s", ErrRouterCycle, strings.Join(visited, " -> "), name)
		}
	}
	if len(visited) >= MaxRouterDepth {
		return nil, BadRequest("router depth exceeds %d hops", MaxRouterDepth)
	}

	p, err := d.brain.Project(ctx, name)
	if err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.question", trace.WithAttributes(
		attribute.String("ragserve.project", p.Name),
		attribute.String("ragserve.type", string(p.Type)),
		attribute.Bool("ragserve.stream", emit != nil),
		attribute.Int("ragserve.hop", len(visited)),
	))
	defer span.End()
	start := time.Now()

	if out, hit, err := d.cached(ctx, p, req.Question, emit); err != nil {
		return nil, d.fail(span, err)
	} else if hit {
		span.SetAttributes(attribute.Bool("ragserve.cached", true))
		d.account(p, out, start)
		return out, nil
	}

	var out *models.InferenceOutput
	switch p.Type {
	case models.ProjectInference:
		out, err = d.inference.Question(ctx, p, req, emit)
	case models.ProjectRAG:
		out, err = d.rag.Question(ctx, p, req, emit)
	case models.ProjectRAGSQL:
		out, err = d.ragsql.Question(ctx, p, req, emit)
	case models.ProjectAgent:
		out, err = d.agent.Question(ctx, p, req, emit)
	case models.ProjectVision:
		if strings.TrimSpace(req.Image) == "" {
			return nil, d.fail(span, BadRequest("vision projects require an image"))
		}
		out, err = d.vision.Question(ctx, p, req, emit)
	case models.ProjectRouter:
		dest, err := d.router.Route(ctx, p, req.Question)
		if err != nil {
			return nil, d.fail(span, err)
		}
		log.Debug().Str("router", p.Name).Str("destination", dest).Msg("Routing question")
		span.SetAttributes(attribute.String("ragserve.destination", dest))
		return d.question(ctx, dest, req, emit, append(visited, name))
	default:
		return nil, d.fail(span, BadRequest("unknown project type %q", p.Type))
	}
	if err != nil {
		return nil, d.fail(span, err)
	}

	d.account(p, out, start)
	return out, nil
}

// ChatMain answers one chat turn. Only inference, rag and agent projects
// hold conversations.
func (d *Dispatcher) ChatMain(ctx context.Context, name string, req models.ChatRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	p, err := d.brain.Project(ctx, name)
	if err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.chat", trace.WithAttributes(
		attribute.String("ragserve.project", p.Name),
		attribute.String("ragserve.type", string(p.Type)),
		attribute.Bool("ragserve.stream", emit != nil),
	))
	defer span.End()
	start := time.Now()

	var chat strategies.ChatStrategy
	switch p.Type {
	case models.ProjectInference:
		chat = d.inference
	case models.ProjectRAG:
		chat = d.rag
	case models.ProjectAgent:
		chat = d.agent
	case models.ProjectRAGSQL, models.ProjectVision, models.ProjectRouter:
		return nil, d.fail(span, BadRequest("chat is not supported for %s projects", p.Type))
	default:
		return nil, d.fail(span, BadRequest("unknown project type %q", p.Type))
	}

	out, err := chat.Chat(ctx, p, req, emit)
	if err != nil {
		return nil, d.fail(span, err)
	}
	d.account(p, out, start)
	return out, nil
}

// cached answers from the semantic cache of a rag project. A hit skips the
// guard and the LLM.
func (d *Dispatcher) cached(ctx context.Context, p *project.Project, question string, emit contracts.DeltaFunc) (*models.InferenceOutput, bool, error) {
	if p.Type != models.ProjectRAG {
		return nil, false, nil
	}
	c, err := p.Cache(ctx)
	if err != nil || c == nil {
		return nil, false, err
	}
	answer, ok, err := c.Verify(ctx, question)
	if err != nil || !ok {
		return nil, false, err
	}
	if emit != nil {
		if err := emit(answer); err != nil {
			return nil, false, err
		}
	}
	log.Debug().Str("project", p.Name).Msg("Semantic cache hit")
	return &models.InferenceOutput{
		Question: question,
		Type:     p.Type,
		Answer:   answer,
		Sources:  []models.Source{},
		Project:  p.Name,
		Cached:   true,
	}, true, nil
}

func (d *Dispatcher) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// account publishes the accounting row of a finished request when the
// project has logging on. It never blocks the response.
func (d *Dispatcher) account(p *project.Project, out *models.InferenceOutput, start time.Time) {
	if d.events == nil || !p.Options.Logging {
		return
	}
	entry := models.InferenceLog{
		ID:           uuid.NewString(),
		Project:      p.Name,
		Type:         p.Type,
		LLM:          p.LLM,
		Team:         p.Team,
		Question:     out.Question,
		Answer:       out.Answer,
		InputTokens:  out.Tokens.Input,
		OutputTokens: out.Tokens.Output,
		LatencyMs:    time.Since(start).Milliseconds(),
		Guard:        out.Guard,
		Cached:       out.Cached,
		Date:         time.Now().UTC(),
	}
	go d.events.PublishInference(entry)
}
