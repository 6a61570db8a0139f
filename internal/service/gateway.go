package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Microck/bansho/internal/domain/audit"
	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/Microck/bansho/internal/domain/proxy"
	"github.com/Microck/bansho/internal/domain/ratelimit"
	"github.com/Microck/bansho/internal/port/outbound"
)

// GatewayDeps are the collaborators the gateway wires together.
type GatewayDeps struct {
	Credentials proxy.CredentialResolver
	Policy      policy.Policy
	Limiter     ratelimit.Limiter
	AuditLog    audit.Store
	Upstream    outbound.Upstream
	Recorder    proxy.Recorder
	Logger      *slog.Logger
}

// Gateway builds the proxy-side MCP server that mirrors one upstream
// and guards every tools/call with the full pipeline.
type Gateway struct {
	upstream outbound.Upstream
	pipeline *proxy.Pipeline
	logger   *slog.Logger

	server *mcp.Server
	tools  []*mcp.Tool
}

// NewGateway wires the request pipeline. Recorder defaults to a no-op.
func NewGateway(deps GatewayDeps) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = proxy.NopRecorder{}
	}

	pipeline := proxy.NewPipeline(
		deps.Credentials,
		NewCachedAuthorizer(deps.Policy, defaultAuthzCacheSize),
		deps.Limiter,
		deps.Policy.RateLimits,
		deps.AuditLog,
		deps.Upstream,
		logger,
		proxy.WithRecorder(recorder),
	)

	return &Gateway{
		upstream: deps.Upstream,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Assemble connects the upstream, mirrors its identity and
// capabilities, and registers every upstream tool behind the guarded
// pipeline. Tool filtering happens per request, so every tool is
// registered regardless of policy.
func (g *Gateway) Assemble(ctx context.Context) (*mcp.Server, error) {
	if err := g.upstream.Connect(ctx); err != nil {
		return nil, err
	}
	init := g.upstream.InitializeResult()
	if init == nil {
		return nil, errors.New("upstream initialize result missing")
	}

	list, err := g.upstream.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}

	impl := &mcp.Implementation{Name: "bansho", Version: "dev"}
	if init.ServerInfo != nil {
		impl.Name = init.ServerInfo.Name
		impl.Version = init.ServerInfo.Version
	}
	server := mcp.NewServer(impl, &mcp.ServerOptions{
		Instructions: init.Instructions,
		Capabilities: init.Capabilities,
	})

	for _, tool := range list.Tools {
		if tool == nil {
			continue
		}
		server.AddTool(tool, g.pipeline.ToolHandler(tool.Name))
	}
	server.AddReceivingMiddleware(g.pipeline.Middleware())

	g.server = server
	g.tools = list.Tools
	g.logger.Debug("gateway assembled",
		"upstream", impl.Name,
		"version", impl.Version,
		"tools", len(list.Tools),
	)
	return server, nil
}

// Run serves the assembled gateway on the given transport until the
// context is canceled or the transport closes.
func (g *Gateway) Run(ctx context.Context, transport mcp.Transport) error {
	if g.server == nil {
		return errors.New("gateway not assembled")
	}
	return g.server.Run(ctx, transport)
}

// Tools returns the mirrored upstream tools, nil before Assemble.
func (g *Gateway) Tools() []*mcp.Tool {
	return g.tools
}
