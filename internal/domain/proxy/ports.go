// Package proxy contains the guarded request pipeline for the MCP
// passthrough proxy: authentication, authorization, rate limiting, and
// audit around every tools/call.
package proxy

import (
	"context"
	"time"

	"github.com/Microck/bansho/internal/domain/auth"
	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AuthContext identifies the caller for the remainder of a guarded
// request once authentication has passed.
type AuthContext struct {
	APIKeyID string
	Role     string
}

// CredentialResolver resolves a presented API key to its stored
// identity. Interface defined in the domain to avoid circular imports.
// Implementation: auth.APIKeyService.
type CredentialResolver interface {
	// Resolve returns nil with no error when the key matches no
	// active record. Errors indicate a lookup failure, not a bad key.
	Resolve(ctx context.Context, presented string) (*auth.ResolvedKey, error)
}

// ToolAuthorizer evaluates the role/tool policy for one call.
// Implementations may cache, evaluation is pure.
type ToolAuthorizer interface {
	Authorize(role, toolName string) policy.Decision
}

// Upstream is the forwarding surface of the upstream MCP session used
// by the pipeline. Interface defined in the domain to avoid circular
// imports. Implementation: the mcp outbound adapter.
type Upstream interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error)
	ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context, params *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, params *mcp.GetPromptParams) (*mcp.GetPromptResult, error)
}

// Recorder receives pipeline observations. Implementation: Prometheus
// metrics on the ops listener.
type Recorder interface {
	// ObserveRequest records one finished guarded request.
	ObserveRequest(method string, statusCode int, latency time.Duration)
	// RateLimited records a denial for scope "per_api_key" or "per_tool".
	RateLimited(scope string)
	// UpstreamError records a failed upstream forward.
	UpstreamError()
	// AuditWriteFailure records an audit event that could not be stored.
	AuditWriteFailure()
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveRequest(string, int, time.Duration) {}
func (NopRecorder) RateLimited(string)                        {}
func (NopRecorder) UpstreamError()                            {}
func (NopRecorder) AuditWriteFailure()                        {}

// Compile-time check that NopRecorder implements Recorder.
var _ Recorder = NopRecorder{}
