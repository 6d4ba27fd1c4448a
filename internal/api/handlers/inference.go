package handlers

import (
	"net/http"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ══════════════════════════════════════════════════════════════
// ── Question / Chat ──────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type inferenceFunc func(emit contracts.DeltaFunc) (*models.InferenceOutput, error)

// Question handles POST /api/v1/projects/{name}/question
func (h *Handlers) Question(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req models.QuestionRequest
	if err := h.decode(r, &req); err != nil {
		respondDispatchError(w, r, err)
		return
	}

	run := func(emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
		return h.Dispatcher.QuestionMain(r.Context(), name, req, emit)
	}
	h.serve(w, r, req.Stream, run)
}

// Chat handles POST /api/v1/projects/{name}/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req models.ChatRequest
	if err := h.decode(r, &req); err != nil {
		respondDispatchError(w, r, err)
		return
	}

	run := func(emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
		return h.Dispatcher.ChatMain(r.Context(), name, req, emit)
	}
	h.serve(w, r, req.Stream, run)
}

// serve answers with JSON, or with SSE frames when stream is set.
func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, stream bool, run inferenceFunc) {
	if !stream {
		out, err := run(nil)
		if err != nil {
			respondDispatchError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	out, err := run(sse.Delta)
	if err != nil {
		if !sse.started {
			respondDispatchError(w, r, err)
			return
		}
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Inference failed mid-stream")
		sse.Fail()
		return
	}
	if err := sse.Finish(out); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to finish stream")
	}
}
