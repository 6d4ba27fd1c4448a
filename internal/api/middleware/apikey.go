package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyAuth gates every route except /health and /version behind one of
// the keys in RAGSERVE_API_KEYS. The key set is fixed at startup.
type APIKeyAuth struct {
	keys [][]byte
}

// NewAPIKeyAuth parses a comma-separated key list. An empty list disables
// the gate.
func NewAPIKeyAuth(keyList string) *APIKeyAuth {
	a := &APIKeyAuth{}
	for _, k := range strings.Split(keyList, ",") {
		if k = strings.TrimSpace(k); k != "" {
			a.keys = append(a.keys, []byte(k))
		}
	}
	return a
}

func (a *APIKeyAuth) Enabled() bool { return len(a.keys) > 0 }

// Middleware rejects requests without a known key with 401.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/version":
			next.ServeHTTP(w, r)
			return
		}

		presented := presentedKey(r)
		switch {
		case presented == "":
			unauthorized(w, "API key required: send Authorization: Bearer <key> or X-API-Key")
		case !a.known(presented):
			unauthorized(w, "invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// known compares against every key so timing does not reveal which matched.
func (a *APIKeyAuth) known(presented string) bool {
	p := []byte(presented)
	match := 0
	for _, k := range a.keys {
		match |= subtle.ConstantTimeCompare(p, k)
	}
	return match == 1
}

// presentedKey reads the bearer token, then X-API-Key, then the api_key
// query parameter used by EventSource clients that cannot set headers.
func presentedKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ragserve"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
