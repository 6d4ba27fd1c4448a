package mcpgw_test

import (
	"context"
	"testing"

	"github.com/agentoven/ragserve/internal/mcpgw"
	"github.com/agentoven/ragserve/internal/tools"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inMemoryDialer connects every host to the gateway over in-memory
// transports.
func inMemoryDialer(t *testing.T, gw *mcpgw.Gateway) tools.Dialer {
	return func(ctx context.Context, host string) (*mcp.ClientSession, error) {
		clientT, serverT := mcp.NewInMemoryTransports()
		if _, err := gw.Server().Connect(ctx, serverT, nil); err != nil {
			return nil, err
		}
		return mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil).Connect(ctx, clientT, nil)
	}
}

func TestGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := mcpgw.NewGateway(tools.NewDefaultRegistry(), "test")

	set, err := tools.FetchRemote(ctx, inMemoryDialer(t, gw), models.MCPServer{Host: "local"})
	require.NoError(t, err)
	defer set.Close()

	names := make([]string, 0, len(set.Tools))
	for _, tl := range set.Tools {
		names = append(names, tl.Name())
	}
	assert.ElementsMatch(t, []string{"calculator", "datetime"}, names)

	var calc = set.Tools[0]
	if calc.Name() != "calculator" {
		calc = set.Tools[1]
	}
	out, err := calc.Call(ctx, map[string]interface{}{"expression": "(3 + 4) * 2"})
	require.NoError(t, err)
	assert.Equal(t, "14", out)

	_, err = calc.Call(ctx, map[string]interface{}{"expression": "1 +"})
	assert.Error(t, err)
}

func TestFetchRemote_Filter(t *testing.T) {
	ctx := context.Background()
	gw := mcpgw.NewGateway(tools.NewDefaultRegistry(), "test")

	set, err := tools.FetchRemote(ctx, inMemoryDialer(t, gw), models.MCPServer{Host: "local", Tools: []string{"datetime"}})
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set.Tools, 1)
	assert.Equal(t, "datetime", set.Tools[0].Name())
}
