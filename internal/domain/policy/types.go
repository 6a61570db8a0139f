// Package policy defines the role/tool authorization model loaded from
// the YAML policy file, and the authorizer that evaluates it.
package policy

import (
	"fmt"
	"strings"
)

// ToolWildcard in an allow list grants every tool to that role.
const ToolWildcard = "*"

// RoleToolPolicy is the allow list for a single role.
type RoleToolPolicy struct {
	Allow []string `yaml:"allow"`
}

// Allows reports whether the role may call toolName.
func (p RoleToolPolicy) Allows(toolName string) bool {
	name := strings.TrimSpace(toolName)
	if name == "" {
		return false
	}
	for _, allowed := range p.Allow {
		if allowed == ToolWildcard || allowed == name {
			return true
		}
	}
	return false
}

// Normalize trims, deduplicates, and collapses the allow list. A list
// containing the wildcard collapses to exactly [ToolWildcard]; blank
// entries are a schema error.
func (p *RoleToolPolicy) Normalize() error {
	out := []string{}
	for _, raw := range p.Allow {
		name := strings.TrimSpace(raw)
		if name == "" {
			return fmt.Errorf("tool names in role allow lists must be non-empty")
		}
		if name == ToolWildcard {
			p.Allow = []string{ToolWildcard}
			return nil
		}
		seen := false
		for _, existing := range out {
			if existing == name {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, name)
		}
	}
	p.Allow = out
	return nil
}

// RolesPolicy holds the three recognized roles.
type RolesPolicy struct {
	Admin    RoleToolPolicy `yaml:"admin"`
	User     RoleToolPolicy `yaml:"user"`
	Readonly RoleToolPolicy `yaml:"readonly"`
}

// Defaults fills absent allow lists: admin gets the wildcard, the
// other roles start empty.
func (p *RolesPolicy) Defaults() {
	if p.Admin.Allow == nil {
		p.Admin.Allow = []string{ToolWildcard}
	}
	if p.User.Allow == nil {
		p.User.Allow = []string{}
	}
	if p.Readonly.Allow == nil {
		p.Readonly.Allow = []string{}
	}
}

func (p *RolesPolicy) Normalize() error {
	p.Defaults()
	if err := p.Admin.Normalize(); err != nil {
		return err
	}
	if err := p.User.Normalize(); err != nil {
		return err
	}
	return p.Readonly.Normalize()
}

// ForRole returns the allow list for a role name, or nil for roles the
// policy does not know.
func (p *RolesPolicy) ForRole(role string) *RoleToolPolicy {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return &p.Admin
	case "user":
		return &p.User
	case "readonly":
		return &p.Readonly
	default:
		return nil
	}
}

// RateLimitWindow is one fixed-window budget.
type RateLimitWindow struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Defaults fills zero fields. An absent field and an explicit zero are
// indistinguishable after decoding; both take the default.
func (w *RateLimitWindow) Defaults(requests, windowSeconds int) {
	if w.Requests == 0 {
		w.Requests = requests
	}
	if w.WindowSeconds == 0 {
		w.WindowSeconds = windowSeconds
	}
}

func (w *RateLimitWindow) Validate() error {
	if w.Requests <= 0 {
		return fmt.Errorf("requests must be > 0")
	}
	if w.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be > 0")
	}
	return nil
}

// ToolRateLimitPolicy is the per-tool budget: a default window plus
// named overrides.
type ToolRateLimitPolicy struct {
	Default   RateLimitWindow            `yaml:"default"`
	Overrides map[string]RateLimitWindow `yaml:"overrides"`
}

func (p *ToolRateLimitPolicy) Defaults() {
	p.Default.Defaults(30, 60)
	if p.Overrides == nil {
		p.Overrides = map[string]RateLimitWindow{}
	}
}

// Normalize validates the default window and every override. Override
// fields left zero inherit from the default window.
func (p *ToolRateLimitPolicy) Normalize() error {
	p.Defaults()
	if err := p.Default.Validate(); err != nil {
		return fmt.Errorf("per_tool.default: %w", err)
	}

	normalized := make(map[string]RateLimitWindow, len(p.Overrides))
	for name, window := range p.Overrides {
		clean := strings.TrimSpace(name)
		if clean == "" {
			return fmt.Errorf("tool override names must be non-empty")
		}
		window.Defaults(p.Default.Requests, p.Default.WindowSeconds)
		if err := window.Validate(); err != nil {
			return fmt.Errorf("per_tool.overrides.%s: %w", clean, err)
		}
		normalized[clean] = window
	}
	p.Overrides = normalized
	return nil
}

// ForTool returns the override for toolName or the default window.
func (p *ToolRateLimitPolicy) ForTool(toolName string) RateLimitWindow {
	name := strings.TrimSpace(toolName)
	if name == "" {
		return p.Default
	}
	if window, ok := p.Overrides[name]; ok {
		return window
	}
	return p.Default
}

// RateLimitsPolicy groups the per-key and per-tool budgets.
type RateLimitsPolicy struct {
	PerAPIKey RateLimitWindow     `yaml:"per_api_key"`
	PerTool   ToolRateLimitPolicy `yaml:"per_tool"`
}

func (p *RateLimitsPolicy) Defaults() {
	p.PerAPIKey.Defaults(120, 60)
	p.PerTool.Defaults()
}

func (p *RateLimitsPolicy) Normalize() error {
	p.Defaults()
	if err := p.PerAPIKey.Validate(); err != nil {
		return fmt.Errorf("per_api_key: %w", err)
	}
	return p.PerTool.Normalize()
}

// Policy is the full authorization document. It is loaded once at
// startup and shared read-only afterwards.
type Policy struct {
	Roles      RolesPolicy      `yaml:"roles"`
	RateLimits RateLimitsPolicy `yaml:"rate_limits"`
}

func (p *Policy) Defaults() {
	p.Roles.Defaults()
	p.RateLimits.Defaults()
}

func (p *Policy) Normalize() error {
	p.Defaults()
	if err := p.Roles.Normalize(); err != nil {
		return err
	}
	return p.RateLimits.Normalize()
}

// IsToolAllowed reports whether role may call toolName. Unknown roles
// are always denied.
func (p Policy) IsToolAllowed(role, toolName string) bool {
	rolePolicy := p.Roles.ForRole(role)
	if rolePolicy == nil {
		return false
	}
	return rolePolicy.Allows(toolName)
}

// KnownTool reports whether any role's allow list names toolName. The
// wildcard does not count as naming a tool.
func (p Policy) KnownTool(toolName string) bool {
	for _, rolePolicy := range []RoleToolPolicy{p.Roles.Admin, p.Roles.User, p.Roles.Readonly} {
		for _, allowed := range rolePolicy.Allow {
			if allowed != ToolWildcard && allowed == toolName {
				return true
			}
		}
	}
	return false
}

func containsWildcard(values []string) bool {
	for _, v := range values {
		if v == ToolWildcard {
			return true
		}
	}
	return false
}
