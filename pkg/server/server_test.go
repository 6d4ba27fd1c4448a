package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/ragserve/internal/config"
	"github.com/agentoven/ragserve/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.DataDir = ""
	cfg.Database = config.DatabaseConfig{}
	cfg.Events = config.EventsConfig{}
	cfg.Telemetry.Enabled = false
	cfg.Providers.CatalogFile = ""
	cfg.Retention.ArchiveDir = t.TempDir()
	cfg.Auth.APIKeys = "secret"
	return cfg
}

func TestNewWithConfig_LocalStack(t *testing.T) {
	ctx := context.Background()
	srv, err := server.NewWithConfig(ctx, localConfig(t))
	require.NoError(t, err)
	defer srv.Shutdown(ctx)

	get := func(path, key string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/health", ""))
	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/projects", ""))
	assert.Equal(t, http.StatusOK, get("/api/v1/projects", "secret"))
	assert.Equal(t, http.StatusOK, get("/api/v1/vectorstores", "secret"))
}

func TestShutdown_Idempotent(t *testing.T) {
	ctx := context.Background()
	srv, err := server.NewWithConfig(ctx, localConfig(t))
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, srv.Shutdown(ctx))
}
