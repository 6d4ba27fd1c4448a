// Package handlers implements the HTTP handlers of the ragserve API.
// Every handler delegates to the Brain or the Dispatcher and funnels
// failures through respondDispatchError.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/dispatch"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Brain      *brain.Brain
	Dispatcher *dispatch.Dispatcher

	validate *validator.Validate
}

// New creates a new Handlers instance.
func New(b *brain.Brain, d *dispatch.Dispatcher) *Handlers {
	return &Handlers{
		Brain:      b,
		Dispatcher: d,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// decode reads a JSON body into v and runs the struct validation tags.
func (h *Handlers) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dispatch.BadRequest("invalid request body: %v", err)
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return dispatch.BadRequest("%s", validationMessage(verrs))
		}
		return dispatch.BadRequest("%v", err)
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// respondDispatchError logs err and writes it with the mapped status.
func respondDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	status := dispatch.Status(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
