// Package outbound defines the outbound port interfaces for connecting
// to upstream MCP servers.
package outbound

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Upstream is the outbound port for the single upstream MCP server the
// proxy guards. Adapters implement this over different transports
// (stdio subprocess, streamable HTTP).
type Upstream interface {
	// Connect establishes the upstream session and performs the MCP
	// initialize handshake. Calling Connect on a live session is a no-op.
	Connect(ctx context.Context) error

	// InitializeResult returns the upstream's initialize response
	// (server info, capabilities, instructions). Nil before Connect.
	InitializeResult() *mcp.InitializeResult

	// ListTools fetches the full upstream tool list, following
	// pagination cursors. Duplicate tool names keep the first entry.
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)

	// CallTool forwards one tools/call to the upstream.
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)

	// ListResources forwards resources/list to the upstream.
	ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error)

	// ReadResource forwards resources/read to the upstream.
	ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error)

	// ListPrompts forwards prompts/list to the upstream.
	ListPrompts(ctx context.Context, params *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error)

	// GetPrompt forwards prompts/get to the upstream.
	GetPrompt(ctx context.Context, params *mcp.GetPromptParams) (*mcp.GetPromptResult, error)

	// Close terminates the upstream session and cleans up resources.
	Close() error
}
