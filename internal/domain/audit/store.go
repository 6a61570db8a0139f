package audit

import (
	"context"
	"encoding/json"
)

// Store persists audit events. Interface defined in the domain to
// avoid circular imports. Implementation: PostgreSQL.
type Store interface {
	// LogEvent normalizes, sanitizes, and persists one event.
	LogEvent(ctx context.Context, event Event) error
}

// Reader serves persisted events back to the dashboard. Interface
// defined in the domain to avoid circular imports. Implementation:
// PostgreSQL.
type Reader interface {
	// RecentEvents returns the newest events first, filtered and
	// bounded by the query.
	RecentEvents(ctx context.Context, query RecentQuery) ([]RecentEvent, error)
}

// RecentQuery filters a recent-events listing. A non-positive Limit
// takes the reader's default; oversized limits are clamped.
type RecentQuery struct {
	Limit    int
	APIKeyID string
	ToolName string
}

// RecentEvent is one persisted audit row shaped for the dashboard API.
// Payload fields hold the stored JSON verbatim.
type RecentEvent struct {
	TS         string          `json:"ts"`
	APIKeyID   *string         `json:"api_key_id"`
	Role       string          `json:"role"`
	Method     string          `json:"method"`
	ToolName   string          `json:"tool_name"`
	Request    json.RawMessage `json:"request"`
	Response   json.RawMessage `json:"response"`
	Decision   json.RawMessage `json:"decision"`
	StatusCode int             `json:"status_code"`
	LatencyMS  int             `json:"latency_ms"`
}
