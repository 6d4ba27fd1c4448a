package strategies

import (
	"context"
	"fmt"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/sqlqa"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

const text2sqlPrompt = `Given an input question, create a syntactically correct %s query to run.
Only use the tables and columns described below. Never modify data: write a single SELECT statement.
Return only the SQL query, without explanation.

Schema:
%s
Question: %s
SQLQuery:`

const sqlAnswerPrompt = `Given an input question, the SQL query that was run and its result, answer the question.

Question: %s
SQLQuery: %s
SQLResult:
%s
Answer:`

// RAGSQL answers questions by generating and running SQL against the
// project's relational connection.
type RAGSQL struct{ base }

// NewRAGSQL creates the SQL QA strategy.
func NewRAGSQL(b *brain.Brain) *RAGSQL { return &RAGSQL{base{brain: b}} }

// Question generates one read-only statement, runs it and phrases the
// answer from the rows. The statement is returned as the only source.
func (s *RAGSQL) Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		return s.censored(p, req.Question, emit)
	}

	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}

	db, err := sqlqa.Open(p.Options.Connection)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables := req.Tables
	if len(tables) == 0 {
		tables = p.Options.Tables
	}
	schema, err := db.Describe(ctx, tables)
	if err != nil {
		return nil, err
	}

	system := systemMessage(s.system(req.System, p))
	var tokens models.Tokens

	gen, err := llm.Chat(ctx, []models.ChatMessage{
		system,
		userMessage(fmt.Sprintf(text2sqlPrompt, db.Dialect(), schema, req.Question)),
	})
	if err != nil {
		return nil, err
	}
	addTokens(&tokens, gen)

	stmt := sqlqa.ExtractSQL(gen.Content)
	rows, err := db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("sql %q: %w", stmt, err)
	}
	log.Debug().Str("project", p.Name).Str("sql", stmt).Int("rows", len(rows.Rows)).Msg("SQL executed")

	c, err := call(ctx, llm, []models.ChatMessage{
		system,
		userMessage(fmt.Sprintf(sqlAnswerPrompt, req.Question, stmt, rows.String())),
	}, emit)
	if err != nil {
		return nil, err
	}
	addTokens(&tokens, c)

	return &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Answer:   c.Content,
		Sources:  []models.Source{{Source: stmt, Score: 1}},
		Tokens:   tokens,
		Project:  p.Name,
	}, nil
}
