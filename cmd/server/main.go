// ragserve serves retrieval-augmented inference for many projects behind
// one HTTP API:
//   - Projects of nine types (inference, rag, ragsql, agent, router, ...)
//   - Document ingestion and similarity search
//   - Buffered and SSE streaming answers, chat sessions
//   - Semantic answer cache, guardrails, evaluation
//   - Inference accounting with retention and optional NATS fan-out
//   - MCP gateway for the built-in agent tools

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.Logging)

	log.Info().Str("version", cfg.Version).Msg("🧠 ragserve starting...")

	ctx := context.Background()
	srv, err := server.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	// No WriteTimeout: SSE answers stay open for as long as the model streams.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", srv.Port),
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Component shutdown incomplete")
		}
	}()

	log.Info().
		Int("port", srv.Port).
		Msg("🔥 ragserve is ready")

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	<-done
}

// setupLogging configures the global zerolog logger. A LOG_FILE adds a
// rotated JSON sink next to the console output.
func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = os.Stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	out := console
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rotator)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
