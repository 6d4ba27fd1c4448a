// Package tools holds the agent tool set: built-in tools registered at
// startup and remote tools discovered on MCP servers.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// OriginBuiltin marks tools that run in-process.
const OriginBuiltin = "builtin"

// Registry holds named built-in tools. Thread-safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]contracts.Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]contracts.Tool)}
}

// NewDefaultRegistry returns a registry with the calculator and clock
// tools.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Calculator{})
	r.Register(Clock{})
	return r
}

// Register adds a tool. Overwrites if exists.
func (r *Registry) Register(t contracts.Tool) {
	r.mu.Lock()
	r.tools[t.Name()] = t
	r.mu.Unlock()
	log.Debug().Str("tool", t.Name()).Msg("Tool registered")
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (contracts.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t, nil
}

// Filter returns the tools named in allow, in allow order. Unknown names
// are skipped.
func (r *Registry) Filter(allow []string) []contracts.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contracts.Tool, 0, len(allow))
	for _, name := range allow {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// All returns every tool sorted by name.
func (r *Registry) All() []contracts.Tool {
	r.mu.RLock()
	out := make([]contracts.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Describe lists the registered tools for the API.
func (r *Registry) Describe() []models.ToolInfo {
	all := r.All()
	out := make([]models.ToolInfo, 0, len(all))
	for _, t := range all {
		out = append(out, models.ToolInfo{Name: t.Name(), Description: t.Description(), Schema: t.Schema(), Origin: OriginBuiltin})
	}
	return out
}
