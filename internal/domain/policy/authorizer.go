package policy

import (
	"fmt"
	"strings"
)

// Reason codes carried on authorization decisions.
const (
	ReasonAllowed        = "allowed"
	ReasonEmptyToolName  = "empty_tool_name"
	ReasonUnknownRole    = "unknown_role"
	ReasonUnknownTool    = "unknown_tool"
	ReasonToolNotAllowed = "tool_not_allowed_for_role"
)

// Decision is the authorization outcome for one role/tool pair.
// MatchedRule is a human-readable trace of the rule that decided it,
// such as "roles.user.allow:public.echo" or "deny:unknown_tool".
type Decision struct {
	Allowed     bool
	Role        string
	ToolName    string
	Reason      string
	MatchedRule string
}

// Authorize evaluates whether role may call toolName under p. The role
// is lowercased and trimmed, the tool name trimmed. Denials
// distinguish tools nobody declares (unknown_tool) from tools declared
// for some other role (tool_not_allowed_for_role); the wildcard never
// declares a tool for that distinction.
func Authorize(p Policy, role, toolName string) Decision {
	normalizedRole := strings.ToLower(strings.TrimSpace(role))
	normalizedTool := strings.TrimSpace(toolName)

	if normalizedTool == "" {
		return Decision{
			Role:        normalizedRole,
			Reason:      ReasonEmptyToolName,
			MatchedRule: "deny:empty_tool_name",
		}
	}

	rolePolicy := p.Roles.ForRole(normalizedRole)
	if rolePolicy == nil {
		return Decision{
			Role:        normalizedRole,
			ToolName:    normalizedTool,
			Reason:      ReasonUnknownRole,
			MatchedRule: "deny:unknown_role",
		}
	}

	if rolePolicy.Allows(normalizedTool) {
		matched := normalizedTool
		if containsWildcard(rolePolicy.Allow) {
			matched = ToolWildcard
		}
		return Decision{
			Allowed:     true,
			Role:        normalizedRole,
			ToolName:    normalizedTool,
			Reason:      ReasonAllowed,
			MatchedRule: fmt.Sprintf("roles.%s.allow:%s", normalizedRole, matched),
		}
	}

	if !p.KnownTool(normalizedTool) {
		return Decision{
			Role:        normalizedRole,
			ToolName:    normalizedTool,
			Reason:      ReasonUnknownTool,
			MatchedRule: "deny:unknown_tool",
		}
	}

	return Decision{
		Role:        normalizedRole,
		ToolName:    normalizedTool,
		Reason:      ReasonToolNotAllowed,
		MatchedRule: fmt.Sprintf("roles.%s.allow", normalizedRole),
	}
}
