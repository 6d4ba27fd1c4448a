package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/agentoven/ragserve/internal/cache"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// validateRefs checks that the model names a definition points at resolve.
func (b *Brain) validateRefs(ctx context.Context, def *models.Project) error {
	if err := project.Validate(def); err != nil {
		return err
	}
	if _, err := b.Registry.LLM(ctx, def.LLM); err != nil {
		return err
	}
	if def.Type == models.ProjectRAG {
		if _, err := b.Registry.Embedding(def.Embeddings); err != nil {
			return err
		}
		if _, err := b.Indexes.Get(def.VectorStore); err != nil {
			return &project.ValidationError{Field: "vectorstore", Message: err.Error()}
		}
	}
	return nil
}

// CreateProject validates and persists a new project.
func (b *Brain) CreateProject(ctx context.Context, def *models.Project) error {
	def.Options.Version = models.ProjectOptionsVersion
	if err := b.validateRefs(ctx, def); err != nil {
		return err
	}
	now := time.Now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	if err := b.Store.CreateProject(ctx, def); err != nil {
		return err
	}
	log.Info().Str("project", def.Name).Str("type", string(def.Type)).Msg("📦 Project created")
	return nil
}

// UpdateProject applies an edit and evicts the wrapper. Name and type
// never change.
func (b *Brain) UpdateProject(ctx context.Context, name string, upd models.ProjectUpdate) (*models.Project, error) {
	def, err := b.Store.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}
	project.ApplyUpdate(def, upd)
	if err := b.validateRefs(ctx, def); err != nil {
		return nil, err
	}
	def.UpdatedAt = time.Now().UTC()
	if err := b.Store.UpdateProject(ctx, def); err != nil {
		return nil, err
	}
	b.Evict(name)
	return def, nil
}

// DeleteProject removes the row, the project's documents, its cache
// collection and its inference logs, then evicts the wrapper.
func (b *Brain) DeleteProject(ctx context.Context, name string) error {
	p, err := b.Project(ctx, name)
	if err != nil {
		return err
	}

	if p.Type == models.ProjectRAG {
		idx, err := b.Indexes.Get(p.VectorStore)
		if err != nil {
			return err
		}
		if err := idx.DeleteCollection(ctx, p.Collection()); err != nil {
			return fmt.Errorf("delete documents of %s: %w", name, err)
		}
		if err := idx.DeleteCollection(ctx, cache.Collection(name)); err != nil {
			return fmt.Errorf("delete cache of %s: %w", name, err)
		}
	}

	if err := b.Store.DeleteProject(ctx, name); err != nil {
		return err
	}
	if err := b.Store.DeleteInferenceLogs(ctx, name); err != nil {
		log.Warn().Err(err).Str("project", name).Msg("Failed to delete inference logs")
	}
	b.Evict(name)
	log.Info().Str("project", name).Msg("🗑️ Project deleted")
	return nil
}
