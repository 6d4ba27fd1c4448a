// Package store provides the storage interface and implementations for ragserve.
// The in-memory store backs local development and tests; the gorm store
// persists to PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
)

// Store is the primary storage interface.
// All handler code depends on this interface, making it easy to swap
// between in-memory (tests) and PostgreSQL (production) implementations.
type Store interface {
	ProjectStore
	LLMStore
	InferenceLogStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}

// ── Project Store ───────────────────────────────────────────

type ProjectStore interface {
	// ListProjects returns the projects owned by team plus every public
	// project. An empty team lists everything.
	ListProjects(ctx context.Context, team string) ([]models.Project, error)
	GetProject(ctx context.Context, name string) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, name string) error
}

// ── LLM Store ───────────────────────────────────────────────

// LLMStore holds the dynamic LLM table layered over the static registry.
type LLMStore interface {
	ListLLMs(ctx context.Context) ([]models.LLMDefinition, error)
	GetLLM(ctx context.Context, name string) (*models.LLMDefinition, error)
	UpsertLLM(ctx context.Context, llm *models.LLMDefinition) error
	DeleteLLM(ctx context.Context, name string) error
}

// ── Inference Log Store ─────────────────────────────────────

type InferenceLogStore interface {
	CreateInferenceLog(ctx context.Context, entry *models.InferenceLog) error
	ListInferenceLogs(ctx context.Context, project string, filter ListFilter) ([]models.InferenceLog, error)
	DeleteInferenceLogs(ctx context.Context, project string) error
	// PurgeInferenceLogs deletes every row dated before cutoff and returns
	// the number removed.
	PurgeInferenceLogs(ctx context.Context, before time.Time) (int, error)
}

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrAlreadyExists is returned when creating an entity whose key is taken.
type ErrAlreadyExists struct {
	Entity string
	Key    string
}

func (e *ErrAlreadyExists) Error() string {
	return e.Entity + " already exists: " + e.Key
}

// ── Filter helpers ──────────────────────────────────────────

// ListFilter provides common pagination/filter options.
type ListFilter struct {
	Limit  int
	Offset int
	Since  *time.Time
	// Until keeps rows dated strictly before it.
	Until *time.Time
}
