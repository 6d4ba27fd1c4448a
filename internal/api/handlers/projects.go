package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentoven/ragserve/internal/api/middleware"
	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/go-chi/chi/v5"
)

// ══════════════════════════════════════════════════════════════
// ── Project Handlers ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListProjects returns the calling team's projects plus every public one.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	team := middleware.GetTeam(r.Context())
	projects, err := h.Brain.Store.ListProjects(r.Context(), team)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	respondJSON(w, http.StatusOK, projects)
}

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var def models.Project
	if err := h.decode(r, &def); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if def.Team == "" {
		def.Team = middleware.GetTeam(r.Context())
	}
	if err := h.Brain.CreateProject(r.Context(), &def); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, def)
}

func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Brain.Store.GetProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var upd models.ProjectUpdate
	if err := h.decode(r, &upd); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	p, err := h.Brain.UpdateProject(r.Context(), chi.URLParam(r, "name"), upd)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Brain.DeleteProject(r.Context(), chi.URLParam(r, "name")); err != nil {
		respondDispatchError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLogs handles GET /api/v1/projects/{name}/logs?limit=&offset=&since=
func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.Brain.Store.GetProject(r.Context(), name); err != nil {
		respondDispatchError(w, r, err)
		return
	}

	filter, err := listFilter(r)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	logs, err := h.Brain.Store.ListInferenceLogs(r.Context(), name, filter)
	if err != nil {
		respondDispatchError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.InferenceLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}

func listFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	filter := store.ListFilter{Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, dispatch.BadRequest("invalid limit %q", v)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, dispatch.BadRequest("invalid offset %q", v)
		}
		filter.Offset = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, dispatch.BadRequest("invalid since %q: want RFC 3339", v)
		}
		filter.Since = &t
	}
	return filter, nil
}
