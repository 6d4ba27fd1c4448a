package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/ragserve/internal/api/handlers"
	"github.com/agentoven/ragserve/internal/api/middleware"
	"github.com/agentoven/ragserve/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes. mcp serves the
// built-in tools over MCP streamable HTTP and may be nil.
func NewRouter(cfg *config.Config, h *handlers.Handlers, auth *middleware.APIKeyAuth, mcp http.Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.TenantExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Team", "X-Request-Id", "Mcp-Session-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if auth != nil {
		r.Use(auth.Middleware)
	}

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Patch("/", h.UpdateProject)
				r.Delete("/", h.DeleteProject)
				r.Post("/question", h.Question)
				r.Post("/chat", h.Chat)
				r.Get("/logs", h.ListLogs)

				// Documents of rag projects
				r.Route("/embeddings", func(r chi.Router) {
					r.Post("/ingest/text", h.IngestText)
					r.Get("/search", h.Search)
					r.Delete("/source/{source}", h.DeleteSource)
					r.Delete("/id/{id}", h.DeleteEmbedding)
				})
			})
		})

		r.Route("/llms", func(r chi.Router) {
			r.Get("/", h.ListLLMs)
			r.Post("/", h.CreateLLM)
			r.Delete("/{name}", h.DeleteLLM)
		})

		r.Get("/embeddings", h.ListEmbeddings)
		r.Get("/vectorstores", h.ListVectorStores)
		r.Get("/tools/agent", h.ListTools)
	})

	// MCP gateway for the built-in agent tools
	if mcp != nil {
		r.Handle("/mcp", mcp)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "ragserve",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "ragserve",
		})
	}
}
