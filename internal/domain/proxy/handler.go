package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Microck/bansho/internal/domain/audit"
	"github.com/Microck/bansho/internal/domain/auth"
	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/Microck/bansho/internal/domain/ratelimit"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Pipeline guards every tools/call with authentication, authorization,
// rate limiting, and a single audit event. One Pipeline serves all
// tools of one upstream session.
type Pipeline struct {
	credentials CredentialResolver
	authorizer  ToolAuthorizer
	limiter     ratelimit.Limiter
	rateLimits  policy.RateLimitsPolicy
	auditLog    audit.Store
	upstream    Upstream
	recorder    Recorder
	logger      *slog.Logger
}

// PipelineOption configures optional Pipeline behavior.
type PipelineOption func(*Pipeline)

// WithRecorder attaches a metrics recorder. The default discards all
// observations.
func WithRecorder(recorder Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// NewPipeline creates a Pipeline over one upstream session.
func NewPipeline(
	credentials CredentialResolver,
	authorizer ToolAuthorizer,
	limiter ratelimit.Limiter,
	rateLimits policy.RateLimitsPolicy,
	auditLog audit.Store,
	upstream Upstream,
	logger *slog.Logger,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		credentials: credentials,
		authorizer:  authorizer,
		limiter:     limiter,
		rateLimits:  rateLimits,
		auditLog:    auditLog,
		upstream:    upstream,
		recorder:    NopRecorder{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ToolHandler returns the guarded handler registered for one upstream
// tool. Exactly one audit event is written per invocation, whatever
// the outcome. Clients only ever see the fixed stage messages or an
// upstream MCP error; internal failure detail stays in the audit log.
func (p *Pipeline) ToolHandler(toolName string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		started := time.Now()
		statusCode := 500
		decision := defaultDecisionPayload()
		var responseJSON any = safeErrorPayload(statusCode, InternalErrorMessage)
		var authCtx *AuthContext

		defer func() {
			latencyMS := int(time.Since(started).Milliseconds())
			if latencyMS < 0 {
				latencyMS = 0
			}
			p.recorder.ObserveRequest("tools/call", statusCode, time.Since(started))

			var apiKeyID *string
			role := "unknown"
			if authCtx != nil {
				apiKeyID = &authCtx.APIKeyID
				role = authCtx.Role
			}
			event := audit.Event{
				TS:         time.Now().UTC(),
				APIKeyID:   apiKeyID,
				Role:       role,
				Method:     "tools/call",
				ToolName:   toolName,
				Request:    map[string]any{"name": toolName, "arguments": rawArgs(req)},
				Response:   responseJSON,
				Decision:   decision,
				StatusCode: statusCode,
				LatencyMS:  latencyMS,
			}
			// The audit write must survive request cancellation.
			if err := p.auditLog.LogEvent(context.Background(), event); err != nil {
				p.recorder.AuditWriteFailure()
				fmt.Fprintf(os.Stderr, "audit_log_failed method=%s tool=%s status=%d error_type=%T\n",
					event.Method, event.ToolName, event.StatusCode, err)
			}
		}()

		// Authentication
		var err error
		authCtx, err = p.authenticate(ctx, req.Extra, metaFromParams(req.Params))
		if err != nil {
			if werr := asWireError(err); werr != nil {
				statusCode = normalizeStatus(werr.Code, 500)
				responseJSON = safeErrorPayload(statusCode, werr.Message)
				if statusCode == 401 {
					decision["auth"] = authDeniedPayload()
					p.logger.Debug("request unauthorized", "tool", toolName)
				}
				return nil, err
			}
			statusCode = 500
			responseJSON = safeExceptionPayload(statusCode, err)
			return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
		}
		decision["auth"] = authGrantedPayload(authCtx)

		// Authorization
		authz := p.authorizer.Authorize(authCtx.Role, toolName)
		decision["authz"] = authzDecisionPayload(authz)
		if !authz.Allowed {
			statusCode = 403
			responseJSON = safeErrorPayload(statusCode, ForbiddenMessage)
			p.logger.Debug("request forbidden",
				"tool", toolName,
				"role", authz.Role,
				"reason", authz.Reason,
			)
			return nil, &jsonrpc.Error{Code: 403, Message: ForbiddenMessage}
		}

		// Rate limiting
		rateDecision, err := p.enforceRateLimit(ctx, authCtx.APIKeyID, toolName)
		if err != nil {
			statusCode = 500
			responseJSON = safeExceptionPayload(statusCode, err)
			return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
		}
		if scope := deniedScope(rateDecision); scope != "" {
			statusCode = 429
			responseJSON = safeErrorPayload(statusCode, TooManyRequestsMessage)
			decision["rate"] = rateDeniedPayload()
			p.recorder.RateLimited(scope)
			p.logger.Debug("request rate limited",
				"tool", toolName,
				"scope", scope,
			)
			return nil, &jsonrpc.Error{Code: 429, Message: TooManyRequestsMessage}
		}
		decision["rate"] = rateGrantedPayload(rateDecision)

		// Forward upstream
		res, err := p.upstream.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: rawArgs(req)})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// Caller went away; the audit event keeps the default
				// internal status.
				return nil, err
			}
			if werr := asWireError(err); werr != nil {
				// Upstream protocol errors pass through with their own
				// code and message.
				statusCode = normalizeStatus(werr.Code, 500)
				responseJSON = safeErrorPayload(statusCode, werr.Message)
				return nil, err
			}
			statusCode = 502
			responseJSON = safeExceptionPayload(statusCode, err)
			p.recorder.UpstreamError()
			return nil, &jsonrpc.Error{Code: 502, Message: UpstreamFailureMessage}
		}

		statusCode = 200
		responseJSON = callResultPayload(res)
		return res, nil
	}
}

// authenticate resolves the caller's API key. Missing and unknown keys
// map to a 401 wire error; store failures stay plain errors so they
// surface as internal faults.
func (p *Pipeline) authenticate(ctx context.Context, extra *mcp.RequestExtra, meta map[string]any) (*AuthContext, error) {
	var header http.Header
	if extra != nil {
		header = extra.Header
	}
	presented := auth.ExtractAPIKey(header, meta)
	if presented == "" {
		return nil, &jsonrpc.Error{Code: 401, Message: UnauthorizedMessage}
	}
	resolved, err := p.credentials.Resolve(ctx, presented)
	if err != nil {
		return nil, fmt.Errorf("resolve api key: %w", err)
	}
	if resolved == nil {
		return nil, &jsonrpc.Error{Code: 401, Message: UnauthorizedMessage}
	}
	return &AuthContext{APIKeyID: resolved.ID, Role: resolved.Role}, nil
}

// enforceRateLimit counts the call against both windows. The per-tool
// counter is not consumed when the per-key window is already exhausted.
func (p *Pipeline) enforceRateLimit(ctx context.Context, apiKeyID, toolName string) (ratelimit.Decision, error) {
	tool := strings.TrimSpace(toolName)
	if tool == "" {
		tool = ratelimit.UnknownToolSegment
	}
	decision := ratelimit.Decision{ToolName: tool}

	perKey := p.rateLimits.PerAPIKey
	perKeyRes, err := p.limiter.CheckAPIKeyLimit(ctx, apiKeyID, perKey.Requests, perKey.WindowSeconds)
	if err != nil {
		return decision, err
	}
	decision.PerAPIKey = perKeyRes
	if !perKeyRes.Allowed {
		return decision, nil
	}

	perTool := p.rateLimits.PerTool.ForTool(tool)
	perToolRes, err := p.limiter.CheckToolLimit(ctx, apiKeyID, tool, perTool.Requests, perTool.WindowSeconds)
	if err != nil {
		return decision, err
	}
	decision.PerTool = perToolRes
	return decision, nil
}

// deniedScope names the first exhausted window, or "" when the call is
// within limits.
func deniedScope(decision ratelimit.Decision) string {
	if !decision.PerAPIKey.Allowed {
		return "per_api_key"
	}
	if !decision.PerTool.Allowed {
		return "per_tool"
	}
	return ""
}

// rawArgs decodes the request arguments for forwarding and for the
// audit snapshot. Undecodable arguments degrade to an empty map.
func rawArgs(req *mcp.CallToolRequest) map[string]any {
	out := map[string]any{}
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return out
	}
	_ = json.Unmarshal(req.Params.Arguments, &out)
	return out
}

// metaFromParams surfaces the request _meta mapping when the params
// type carries one.
func metaFromParams(params any) map[string]any {
	if params == nil {
		return nil
	}
	if p, ok := params.(interface{ GetMeta() map[string]any }); ok {
		return p.GetMeta()
	}
	return nil
}
