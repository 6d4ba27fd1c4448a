package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Dialer opens an MCP client session to host.
type Dialer func(ctx context.Context, host string) (*mcp.ClientSession, error)

var clientImpl = &mcp.Implementation{Name: "ragserve-agent", Version: "1.0.0"}

// DialStreamable connects over MCP streamable HTTP.
func DialStreamable(ctx context.Context, host string) (*mcp.ClientSession, error) {
	client := mcp.NewClient(clientImpl, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: host}, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect %s: %w", host, err)
	}
	return session, nil
}

// RemoteSet is the tool set fetched from one MCP server for one request.
// Close ends the session.
type RemoteSet struct {
	Tools   []contracts.Tool
	session *mcp.ClientSession
}

// Close ends the MCP session.
func (s *RemoteSet) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}

// FetchRemote lists the tools of server, keeping those allowed by its
// filter. An empty filter allows every tool.
func FetchRemote(ctx context.Context, dial Dialer, server models.MCPServer) (*RemoteSet, error) {
	session, err := dial(ctx, server.Host)
	if err != nil {
		return nil, err
	}

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("mcp list tools %s: %w", server.Host, err)
	}

	allow := make(map[string]bool, len(server.Tools))
	for _, name := range server.Tools {
		allow[name] = true
	}

	set := &RemoteSet{session: session}
	for _, t := range listed.Tools {
		if len(allow) > 0 && !allow[t.Name] {
			continue
		}
		set.Tools = append(set.Tools, &remoteTool{
			session:     session,
			host:        server.Host,
			name:        t.Name,
			description: t.Description,
			schema:      schemaMap(t.InputSchema),
		})
	}
	return set, nil
}

// remoteTool proxies one MCP tool.
type remoteTool struct {
	session     *mcp.ClientSession
	host        string
	name        string
	description string
	schema      map[string]interface{}
}

func (t *remoteTool) Name() string                   { return t.name }
func (t *remoteTool) Description() string            { return t.description }
func (t *remoteTool) Schema() map[string]interface{} { return t.schema }

func (t *remoteTool) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: t.name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcp call %s on %s: %w", t.name, t.host, err)
	}
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("mcp tool %s: %s", t.name, sb.String())
	}
	return sb.String(), nil
}

// schemaMap normalizes whatever schema representation the SDK hands back
// into a plain map.
func schemaMap(schema interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]interface{}); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
