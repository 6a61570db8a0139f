// Package mcp connects the proxy to its upstream MCP server over a
// stdio subprocess or streamable HTTP.
package mcp

import (
	"context"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Microck/bansho/internal/port/outbound"
)

// Supported upstream transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config selects the upstream transport and its target.
type Config struct {
	// Transport is TransportStdio or TransportHTTP.
	Transport string
	// Command is the shell-style command line spawning the upstream,
	// stdio only.
	Command string
	// URL is the streamable HTTP endpoint, http only.
	URL string
}

// Connector maintains the single upstream MCP session. The session is
// established lazily on first use and reused afterwards.
type Connector struct {
	cfg Config

	mu      sync.Mutex
	client  *mcp.Client
	session *mcp.ClientSession

	// dial builds the transport for Connect, overridable in tests.
	dial func() (mcp.Transport, error)
}

// NewConnector creates a connector for the configured upstream.
func NewConnector(cfg Config) *Connector {
	c := &Connector{cfg: cfg}
	c.dial = func() (mcp.Transport, error) {
		return buildTransport(c.cfg)
	}
	return c
}

// Compile-time check that Connector implements the outbound port.
var _ outbound.Upstream = (*Connector)(nil)

// Connect establishes the upstream session and performs the MCP
// initialize handshake. Calling Connect on a live session is a no-op.
func (c *Connector) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

func (c *Connector) connect(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}
	if c.client == nil {
		c.client = mcp.NewClient(&mcp.Implementation{Name: "bansho-upstream"}, nil)
	}

	transport, err := c.dial()
	if err != nil {
		return nil, err
	}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	c.session = session
	return session, nil
}

// InitializeResult returns the upstream's initialize response, or nil
// before Connect.
func (c *Connector) InitializeResult() *mcp.InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.InitializeResult()
}

// ListTools fetches the full upstream tool list, following pagination
// cursors. Duplicate tool names keep the first entry.
func (c *Connector) ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &mcp.ListToolsParams{}
	}

	out := &mcp.ListToolsResult{}
	seen := make(map[string]struct{})
	cursor := params.Cursor
	for {
		page, err := session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor, Meta: params.Meta})
		if err != nil {
			return nil, err
		}
		mergeToolPage(out, seen, page.Tools)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// mergeToolPage appends tools whose names have not been seen yet.
func mergeToolPage(out *mcp.ListToolsResult, seen map[string]struct{}, tools []*mcp.Tool) {
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		if _, dup := seen[tool.Name]; dup {
			continue
		}
		seen[tool.Name] = struct{}{}
		out.Tools = append(out.Tools, tool)
	}
}

// CallTool forwards one tools/call to the upstream.
func (c *Connector) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return session.CallTool(ctx, params)
}

// ListResources forwards resources/list to the upstream.
func (c *Connector) ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return session.ListResources(ctx, params)
}

// ReadResource forwards resources/read to the upstream.
func (c *Connector) ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return session.ReadResource(ctx, params)
}

// ListPrompts forwards prompts/list to the upstream.
func (c *Connector) ListPrompts(ctx context.Context, params *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return session.ListPrompts(ctx, params)
}

// GetPrompt forwards prompts/get to the upstream.
func (c *Connector) GetPrompt(ctx context.Context, params *mcp.GetPromptParams) (*mcp.GetPromptResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return session.GetPrompt(ctx, params)
}

// Close terminates the upstream session. Closing a never-connected or
// already-closed connector is a no-op.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
