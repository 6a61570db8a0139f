package proxy

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Middleware routes the non-tool MCP surface. tools/list is
// authenticated and filtered down to what the caller's role may see;
// resources and prompts pass through to the upstream untouched.
// Unhandled methods fall through to the server defaults.
func (p *Pipeline) Middleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			switch method {
			case "tools/list":
				return p.handleListTools(ctx, req)
			case "resources/list":
				r, ok := req.(*mcp.ListResourcesRequest)
				if !ok {
					return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
				}
				params := r.Params
				if params == nil {
					params = &mcp.ListResourcesParams{}
				}
				return p.upstream.ListResources(ctx, params)
			case "resources/read":
				r, ok := req.(*mcp.ReadResourceRequest)
				if !ok {
					return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
				}
				params := r.Params
				if params == nil {
					params = &mcp.ReadResourceParams{}
				}
				return p.upstream.ReadResource(ctx, params)
			case "prompts/list":
				r, ok := req.(*mcp.ListPromptsRequest)
				if !ok {
					return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
				}
				params := r.Params
				if params == nil {
					params = &mcp.ListPromptsParams{}
				}
				return p.upstream.ListPrompts(ctx, params)
			case "prompts/get":
				r, ok := req.(*mcp.GetPromptRequest)
				if !ok {
					return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
				}
				params := r.Params
				if params == nil {
					params = &mcp.GetPromptParams{}
				}
				return p.upstream.GetPrompt(ctx, params)
			default:
				return next(ctx, method, req)
			}
		}
	}
}

// handleListTools serves an authenticated, role-filtered view of the
// upstream tool list. Pagination cursors pass through unchanged.
func (p *Pipeline) handleListTools(ctx context.Context, req mcp.Request) (mcp.Result, error) {
	listReq, ok := req.(*mcp.ListToolsRequest)
	if !ok {
		return nil, &jsonrpc.Error{Code: 500, Message: InternalErrorMessage}
	}

	authCtx, err := p.authenticate(ctx, listReq.Extra, metaFromParams(listReq.Params))
	if err != nil {
		return nil, err
	}

	params := listReq.Params
	if params == nil {
		params = &mcp.ListToolsParams{}
	}
	res, err := p.upstream.ListTools(ctx, params)
	if err != nil {
		return nil, err
	}

	filtered := make([]*mcp.Tool, 0, len(res.Tools))
	for _, tool := range res.Tools {
		if tool == nil {
			continue
		}
		if p.authorizer.Authorize(authCtx.Role, tool.Name).Allowed {
			filtered = append(filtered, tool)
		}
	}
	return &mcp.ListToolsResult{Tools: filtered, NextCursor: res.NextCursor}, nil
}
