package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Microck/bansho/internal/domain/audit"
)

// Recent-event listing bounds. A non-positive limit takes the default,
// oversized limits are clamped.
const (
	recentEventsDefaultLimit = 50
	recentEventsMaxLimit     = 200
)

// AuditStore implements audit.Store and audit.Reader on top of the
// audit_events table.
type AuditStore struct {
	db Querier
}

// NewAuditStore creates an audit store backed by the given pool.
func NewAuditStore(db Querier) *AuditStore {
	return &AuditStore{db: db}
}

// Compile-time checks that AuditStore implements the domain ports.
var (
	_ audit.Store  = (*AuditStore)(nil)
	_ audit.Reader = (*AuditStore)(nil)
)

// LogEvent normalizes, bounds, and inserts one event. An api_key_id
// that is not a valid UUID is stored as NULL so the row still lands.
func (s *AuditStore) LogEvent(ctx context.Context, event audit.Event) error {
	rec, err := event.Normalize()
	if err != nil {
		return err
	}

	var apiKeyID any
	if rec.APIKeyID != nil {
		if parsed, err := uuid.Parse(*rec.APIKeyID); err == nil {
			apiKeyID = parsed
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_events (
			id, ts, api_key_id, role, method, tool_name,
			request_json, response_json, decision,
			status_code, latency_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::jsonb, $8::jsonb, $9::jsonb,
			$10, $11
		);
	`, uuid.New(), rec.TS, apiKeyID, rec.Role, rec.Method, rec.ToolName,
		rec.RequestJSON, rec.ResponseJSON, rec.DecisionJSON,
		rec.StatusCode, rec.LatencyMS,
	)
	return err
}

// RecentEvents returns the newest events first, optionally filtered by
// api_key_id and tool_name.
func (s *AuditStore) RecentEvents(ctx context.Context, query audit.RecentQuery) ([]audit.RecentEvent, error) {
	sql, args := buildRecentEventsQuery(query)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.RecentEvent
	for rows.Next() {
		var (
			ts          time.Time
			apiKeyID    *string
			role        string
			method      string
			tool        string
			status      int
			latency     int
			decisionRaw []byte
			requestRaw  []byte
			responseRaw []byte
		)
		if err := rows.Scan(&ts, &apiKeyID, &role, &method, &tool,
			&status, &latency, &decisionRaw, &requestRaw, &responseRaw); err != nil {
			return nil, err
		}
		out = append(out, audit.RecentEvent{
			TS:         ts.UTC().Format(time.RFC3339Nano),
			APIKeyID:   apiKeyID,
			Role:       role,
			Method:     method,
			ToolName:   tool,
			Request:    requestRaw,
			Response:   responseRaw,
			Decision:   decisionRaw,
			StatusCode: status,
			LatencyMS:  latency,
		})
	}
	return out, rows.Err()
}

// buildRecentEventsQuery assembles the filtered listing query with
// positional placeholders. Filters apply only when non-empty.
func buildRecentEventsQuery(query audit.RecentQuery) (string, []any) {
	conditions := ""
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.APIKeyID != "" {
		conditions += " AND api_key_id::text = " + arg(query.APIKeyID)
	}
	if query.ToolName != "" {
		conditions += " AND tool_name = " + arg(query.ToolName)
	}
	limitPlaceholder := arg(clampLimit(query.Limit))

	sql := `
		SELECT
			ts,
			api_key_id::text AS api_key_id,
			role,
			method,
			tool_name,
			status_code,
			latency_ms,
			decision,
			request_json,
			response_json
		FROM audit_events
		WHERE 1=1` + conditions + `
		ORDER BY ts DESC
		LIMIT ` + limitPlaceholder + `;
	`
	return sql, args
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return recentEventsDefaultLimit
	}
	if limit > recentEventsMaxLimit {
		return recentEventsMaxLimit
	}
	return limit
}
