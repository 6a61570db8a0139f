// Package audit contains the audit event model and the sanitizer that
// bounds every JSON payload before it is persisted.
package audit

import (
	"fmt"
	"strings"
	"time"
)

// Bounds applied to every persisted JSON payload.
const (
	MaxJSONBytes       = 4096
	MaxJSONDepth       = 6
	MaxJSONItems       = 40
	MaxJSONKeyChars    = 64
	MaxJSONStringChars = 512

	// RedactedValue replaces values under sensitive keys.
	RedactedValue = "[REDACTED]"
	// TruncatedValue marks elided content.
	TruncatedValue = "[TRUNCATED]"
)

// sensitiveKeys are redacted wherever they appear, matched on the
// lowercased key.
var sensitiveKeys = map[string]struct{}{
	"api_key":        {},
	"authorization":  {},
	"password":       {},
	"secret":         {},
	"token":          {},
	"x-api-key":      {},
	"x_api_key":      {},
	"xapikey":        {},
	"x-api-key-id":   {},
	"x_api_key_id":   {},
	"x-api-keyid":    {},
	"x_api_keyid":    {},
	"x-api-key_hash": {},
}

// Event is one guarded request as observed by the pipeline. Request,
// Response, and Decision accept any JSON-shaped value; sanitization
// happens at write time.
type Event struct {
	TS         time.Time
	APIKeyID   *string
	Role       string
	Method     string
	ToolName   string
	Request    any
	Response   any
	Decision   any
	StatusCode int
	LatencyMS  int
}

// Record is a normalized, bounded event ready for insertion. The JSON
// fields are serialized text within MaxJSONBytes.
type Record struct {
	TS           time.Time
	APIKeyID     *string
	Role         string
	Method       string
	ToolName     string
	RequestJSON  string
	ResponseJSON string
	DecisionJSON string
	StatusCode   int
	LatencyMS    int
}

// Normalize validates the event and bounds its payloads. The role
// falls back to "unknown", the method is uppercased, and a zero
// timestamp takes the current UTC time.
func (e Event) Normalize() (Record, error) {
	role := normalizeTextOr(e.Role, "unknown")
	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if method == "" {
		return Record{}, fmt.Errorf("method must be a non-empty string")
	}
	tool := strings.TrimSpace(e.ToolName)
	if tool == "" {
		return Record{}, fmt.Errorf("tool_name must be a non-empty string")
	}
	if e.StatusCode < 0 || e.StatusCode > 999 {
		return Record{}, fmt.Errorf("status_code must be between 0 and 999")
	}
	if e.LatencyMS < 0 {
		return Record{}, fmt.Errorf("latency_ms must be >= 0")
	}

	ts := e.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Record{
		TS:           ts,
		APIKeyID:     normalizeOptionalText(e.APIKeyID),
		Role:         role,
		Method:       method,
		ToolName:     tool,
		RequestJSON:  serializeJSON(boundPayload(e.Request)),
		ResponseJSON: serializeJSON(boundPayload(e.Response)),
		DecisionJSON: serializeJSON(boundPayload(e.Decision)),
		StatusCode:   e.StatusCode,
		LatencyMS:    e.LatencyMS,
	}, nil
}

func normalizeOptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	n := strings.TrimSpace(*value)
	if n == "" {
		return nil
	}
	n = truncateText(n, MaxJSONStringChars)
	return &n
}

func normalizeTextOr(value, fallback string) string {
	n := strings.TrimSpace(value)
	if n == "" {
		return fallback
	}
	return truncateText(n, MaxJSONStringChars)
}
