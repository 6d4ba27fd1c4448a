package handlers

import (
	"net/http"
	"strings"

	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ══════════════════════════════════════════════════════════════
// ── LLM Registry ─────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListLLMs returns the static, catalog and dynamic LLMs merged.
func (h *Handlers) ListLLMs(w http.ResponseWriter, r *http.Request) {
	llms, err := h.Brain.Registry.LLMs(r.Context())
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, llms)
}

// CreateLLM stores a dynamic LLM. An existing dynamic entry of the same
// name is replaced and its memoized client dropped.
func (h *Handlers) CreateLLM(w http.ResponseWriter, r *http.Request) {
	var def models.LLMDefinition
	if err := h.decode(r, &def); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if err := validateLLM(&def); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if err := h.Brain.Store.UpsertLLM(r.Context(), &def); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	h.Brain.ForgetLLM(def.Name)
	log.Info().Str("llm", def.Name).Str("class", string(def.Class)).Msg("🧠 Dynamic LLM stored")
	respondJSON(w, http.StatusCreated, def)
}

func (h *Handlers) DeleteLLM(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Brain.Store.DeleteLLM(r.Context(), name); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	h.Brain.ForgetLLM(name)
	w.WriteHeader(http.StatusNoContent)
}

func validateLLM(def *models.LLMDefinition) error {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return dispatch.BadRequest("name is required")
	}
	if strings.TrimSpace(def.Model) == "" {
		return dispatch.BadRequest("model is required")
	}
	switch def.Class {
	case models.LLMClassOpenAI, models.LLMClassOllama, models.LLMClassAnthropic:
	default:
		return dispatch.BadRequest("unknown llm class %q", def.Class)
	}
	switch def.Type {
	case "":
		def.Type = models.LLMTypeChat
	case models.LLMTypeChat, models.LLMTypeQA, models.LLMTypeVision:
	default:
		return dispatch.BadRequest("unknown llm type %q", def.Type)
	}
	if def.Privacy == "" {
		def.Privacy = models.PrivacyPublic
	}
	if def.InputCost < 0 || def.OutputCost < 0 {
		return dispatch.BadRequest("costs must not be negative")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════
// ── Tools ────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListTools handles GET /api/v1/tools/agent
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Brain.Tools.Describe())
}
