package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/Microck/bansho/internal/domain/ratelimit"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const notEvaluatedReason = "not_evaluated"

// defaultDecisionPayload is the audit decision before any stage has
// run. Each stage overwrites its own section as it completes, so a
// request that fails early keeps "not_evaluated" for later stages.
func defaultDecisionPayload() map[string]any {
	return map[string]any{
		"auth": map[string]any{
			"allowed": false,
			"reason":  notEvaluatedReason,
		},
		"authz": map[string]any{
			"allowed": false,
			"reason":  notEvaluatedReason,
		},
		"rate": map[string]any{
			"allowed": false,
			"reason":  notEvaluatedReason,
		},
	}
}

func authGrantedPayload(authCtx *AuthContext) map[string]any {
	return map[string]any{
		"allowed":    true,
		"api_key_id": authCtx.APIKeyID,
		"role":       authCtx.Role,
	}
}

func authDeniedPayload() map[string]any {
	return map[string]any{
		"allowed": false,
		"reason":  "unauthorized",
	}
}

func authzDecisionPayload(decision policy.Decision) map[string]any {
	return map[string]any{
		"allowed":      decision.Allowed,
		"role":         decision.Role,
		"reason":       decision.Reason,
		"matched_rule": decision.MatchedRule,
	}
}

func rateDeniedPayload() map[string]any {
	return map[string]any{
		"allowed": false,
		"reason":  "too_many_requests",
	}
}

func rateGrantedPayload(decision ratelimit.Decision) map[string]any {
	return map[string]any{
		"allowed":   true,
		"reason":    "within_limits",
		"tool_name": decision.ToolName,
		"per_api_key": map[string]any{
			"allowed":   decision.PerAPIKey.Allowed,
			"remaining": decision.PerAPIKey.Remaining,
			"reset_s":   decision.PerAPIKey.ResetS,
		},
		"per_tool": map[string]any{
			"allowed":   decision.PerTool.Allowed,
			"remaining": decision.PerTool.Remaining,
			"reset_s":   decision.PerTool.ResetS,
		},
	}
}

func safeErrorPayload(code int, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// safeExceptionPayload records an internal failure for the audit log.
// The error type is kept, the error text is not.
func safeExceptionPayload(statusCode int, err error) map[string]any {
	message := InternalErrorMessage
	if statusCode == 502 {
		message = UpstreamFailureMessage
	}
	return map[string]any{
		"error": map[string]any{
			"code":    statusCode,
			"message": message,
			"type":    fmt.Sprintf("%T", err),
		},
	}
}

// callResultPayload renders a tool result for the audit log. The
// isError flag is always present, matching what the client observed.
func callResultPayload(res *mcp.CallToolResult) any {
	if res == nil {
		return nil
	}
	encoded, err := json.Marshal(res)
	if err != nil {
		return res
	}
	payload := map[string]any{}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return res
	}
	payload["isError"] = res.IsError
	return payload
}
