// Package server provides the public entry point for initializing the
// ragserve server.
//
// It lives in pkg/ (not internal/) so that embedders can compose the
// handler with their own middleware:
//
//	srv, err := server.New(ctx)
//	defer srv.Shutdown(ctx)
//	http.ListenAndServe(":9000", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentoven/ragserve/internal/api"
	"github.com/agentoven/ragserve/internal/api/handlers"
	"github.com/agentoven/ragserve/internal/api/middleware"
	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/agentoven/ragserve/internal/events"
	"github.com/agentoven/ragserve/internal/mcpgw"
	"github.com/agentoven/ragserve/internal/registry"
	"github.com/agentoven/ragserve/internal/retention"
	"github.com/agentoven/ragserve/internal/sessions"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/internal/telemetry"
	"github.com/agentoven/ragserve/internal/vectorstore"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized ragserve components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store holds projects, dynamic LLMs and inference logs.
	Store store.Store

	// Brain is the shared model and project cache.
	Brain *brain.Brain

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	cancel  context.CancelFunc
	closers []func(context.Context) error
}

// New loads configuration from the environment and initializes the server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes every component from cfg. Background workers
// run until Shutdown.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	bg, cancel := context.WithCancel(context.Background())
	s := &Server{Config: cfg, Port: cfg.Port, cancel: cancel}
	ok := false
	defer func() {
		if !ok {
			s.Shutdown(ctx)
		}
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.onClose(shutdownTracing)

	// ── Storage ─────────────────────────────────────────────
	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.Store = dataStore
	s.onClose(func(context.Context) error { return dataStore.Close() })

	reg := registry.New(dataStore)
	if cfg.Providers.CatalogFile != "" {
		if err := reg.WatchCatalog(bg, cfg.Providers.CatalogFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Providers.CatalogFile).Msg("LLM catalog not loaded")
		}
	}

	indexes := vectorstore.NewRegistry()
	indexes.Register(models.VectorStoreEmbedded, vectorstore.NewEmbeddedStore())
	if cfg.Database.PgvectorURL != "" {
		pg, err := vectorstore.NewPgvectorStore(ctx, cfg.Database.PgvectorURL)
		if err != nil {
			return nil, fmt.Errorf("init pgvector: %w", err)
		}
		indexes.Register(models.VectorStorePgvector, pg)
		s.onClose(func(context.Context) error { pg.Close(); return nil })
	}

	chats, err := openChats(ctx, cfg, s)
	if err != nil {
		return nil, err
	}

	b := brain.New(brain.Options{
		Config:   cfg,
		Store:    dataStore,
		Registry: reg,
		Chats:    chats,
		Indexes:  indexes,
	})
	s.Brain = b
	s.onClose(func(context.Context) error { b.Close(); return nil })
	log.Info().Strs("vectorstores", indexes.List()).Msg("✅ Brain initialized")

	// ── Accounting ──────────────────────────────────────────
	bus := events.NewBus()
	s.onClose(func(context.Context) error { return bus.Close() })
	if err := events.NewAccountant(dataStore, reg).Start(bg, bus); err != nil {
		return nil, fmt.Errorf("start accountant: %w", err)
	}
	if cfg.Events.NatsURL != "" {
		fwd, err := events.NewForwarder(ctx, cfg.Events.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("init nats: %w", err)
		}
		s.onClose(func(context.Context) error { fwd.Close(); return nil })
		if err := fwd.Start(bg, bus, events.TopicInference); err != nil {
			return nil, fmt.Errorf("start nats forwarder: %w", err)
		}
		log.Info().Str("url", cfg.Events.NatsURL).Msg("📨 Forwarding inference logs to NATS")
	}

	var archiver retention.Archiver
	if cfg.Retention.ArchiveDir != "" {
		archiver = retention.NewLocalFileArchiver(cfg.Retention.ArchiveDir, cfg.Retention.Compress)
	}
	go retention.NewJanitor(dataStore, cfg.Retention.Days, cfg.Retention.Interval, archiver).Start(bg)

	// ── HTTP ────────────────────────────────────────────────
	h := handlers.New(b, dispatch.New(b, bus))
	gw := mcpgw.NewGateway(b.Tools, cfg.Version)
	log.Info().Msg("✅ MCP Gateway initialized")

	var auth *middleware.APIKeyAuth
	if cfg.Auth.APIKeys != "" {
		auth = middleware.NewAPIKeyAuth(cfg.Auth.APIKeys)
	}
	s.Handler = api.NewRouter(cfg, h, auth, gw.Handler())

	ok = true
	return s, nil
}

// Shutdown stops background workers and releases resources in reverse
// order of creation.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *Server) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Info().Str("data_dir", cfg.DataDir).Msg("✅ In-memory store initialized")
		return store.NewMemoryStore(cfg.DataDir), nil
	}
	pg, err := store.NewGormStore(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func openChats(ctx context.Context, cfg *config.Config, s *Server) (contracts.ChatStore, error) {
	if cfg.Database.RedisURL == "" {
		return sessions.NewMemoryStore(cfg.Inference.ChatSessionTTL), nil
	}
	rdb, err := sessions.DialRedis(ctx, cfg.Database.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	s.onClose(func(context.Context) error { return rdb.Close() })
	log.Info().Msg("✅ Redis chat store connected")
	return sessions.NewRedisStore(rdb, cfg.Inference.ChatSessionTTL), nil
}
