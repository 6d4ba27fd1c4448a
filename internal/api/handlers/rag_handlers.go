package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/rag"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ══════════════════════════════════════════════════════════════
// ── Project Embeddings ───────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ragProject loads the named project and its index. Only rag projects hold
// documents.
func (h *Handlers) ragProject(ctx context.Context, name string) (*project.Project, contracts.VectorIndex, contracts.Embedder, error) {
	p, err := h.Brain.Project(ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Type != models.ProjectRAG {
		return nil, nil, nil, dispatch.BadRequest("project %s is of type %s and holds no embeddings", p.Name, p.Type)
	}
	idx, emb, err := p.Index(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, idx, emb, nil
}

// IngestText handles POST /api/v1/projects/{name}/embeddings/ingest/text
func (h *Handlers) IngestText(w http.ResponseWriter, r *http.Request) {
	var req models.IngestTextRequest
	if err := h.decode(r, &req); err != nil {
		respondDispatchError(w, r, err)
		return
	}

	p, idx, emb, err := h.ragProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}

	result, err := rag.NewIngester(emb, idx).IngestText(r.Context(), p.Collection(), req)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	log.Info().
		Str("project", p.Name).
		Str("source", req.Source).
		Int("chunks", result.ChunksCreated).
		Msg("📥 Text ingested")
	respondJSON(w, http.StatusCreated, result)
}

// Search handles GET /api/v1/projects/{name}/embeddings/search?text=&k=
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		respondDispatchError(w, r, dispatch.BadRequest("text is required"))
		return
	}
	k := h.Brain.Config.Inference.DefaultK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 25 {
			respondDispatchError(w, r, dispatch.BadRequest("k must be between 1 and 25"))
			return
		}
		k = n
	}
	if k < 1 {
		k = 1
	}

	p, idx, emb, err := h.ragProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}

	vectors, err := emb.Embed(r.Context(), []string{text})
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	results, err := idx.Search(r.Context(), p.Collection(), vectors[0], k)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rag.Sources(results, false))
}

// DeleteSource handles DELETE /api/v1/projects/{name}/embeddings/source/{source}
func (h *Handlers) DeleteSource(w http.ResponseWriter, r *http.Request) {
	p, idx, _, err := h.ragProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	source := chi.URLParam(r, "source")
	n, err := idx.DeleteBySource(r.Context(), p.Collection(), source)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"source": source, "deleted": n})
}

// DeleteEmbedding handles DELETE /api/v1/projects/{name}/embeddings/id/{id}
func (h *Handlers) DeleteEmbedding(w http.ResponseWriter, r *http.Request) {
	p, idx, _, err := h.ragProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if err := idx.DeleteByID(r.Context(), p.Collection(), chi.URLParam(r, "id")); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════
// ── Embedding Models / Vector Stores ─────────────────────────
// ══════════════════════════════════════════════════════════════

// ListEmbeddings handles GET /api/v1/embeddings
func (h *Handlers) ListEmbeddings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Brain.Registry.Embeddings())
}

// ListVectorStores handles GET /api/v1/vectorstores
func (h *Handlers) ListVectorStores(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Brain.Indexes.List())
}
