// Package mcpgw serves the built-in agent tools over the Model Context
// Protocol, so external MCP clients can discover and call the same tools
// agent projects use.
package mcpgw

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentoven/ragserve/internal/tools"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Gateway owns the MCP server built from a tool registry.
type Gateway struct {
	server *mcp.Server
}

// NewGateway registers every tool of reg on a fresh MCP server.
func NewGateway(reg *tools.Registry, version string) *Gateway {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ragserve",
		Version: version,
	}, nil)

	for _, t := range reg.All() {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
		}, handler(t))
	}
	log.Info().Int("tools", len(reg.All())).Msg("🔌 MCP gateway ready")
	return &Gateway{server: srv}
}

func handler(t contracts.Tool) func(context.Context, *mcp.CallToolRequest, map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		out, err := t.Call(ctx, args)
		if err != nil {
			return toolError("%s failed: %v", t.Name(), err), nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
		}, nil, nil
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// Server returns the underlying MCP server, for in-process transports.
func (g *Gateway) Server() *mcp.Server { return g.server }

// Handler serves the gateway over MCP streamable HTTP.
func (g *Gateway) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, nil)
}
