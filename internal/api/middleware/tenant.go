package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// TeamKey is the context key for the calling team.
const TeamKey contextKey = "team"

// DefaultTeam is used when a request names no team.
const DefaultTeam = "default"

// TenantExtractor extracts the calling team from the request.
// It checks the X-Team header, then the team query parameter,
// and falls back to "default".
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team := strings.TrimSpace(r.Header.Get("X-Team"))
		if team == "" {
			team = strings.TrimSpace(r.URL.Query().Get("team"))
		}
		if team == "" {
			team = DefaultTeam
		}

		ctx := context.WithValue(r.Context(), TeamKey, team)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTeam retrieves the team name from the request context.
func GetTeam(ctx context.Context) string {
	if v, ok := ctx.Value(TeamKey).(string); ok && v != "" {
		return v
	}
	return DefaultTeam
}
