// Package ratelimit provides fixed-window request counting: the window
// math, counter key layout, and the Limiter port. Counters live in an
// external store; one atomic script round-trip serves each check.
package ratelimit

import (
	"errors"
	"fmt"
	"strings"
)

// Blank key segments are substituted so malformed input still produces
// a valid, attributable counter key.
const (
	UnknownKeySegment  = "__unknown_key__"
	UnknownToolSegment = "__unknown_tool__"
)

// FixedWindowIncrScript increments a window counter and attaches the
// TTL only on the first increment of the bucket. Running it as one
// script keeps INCR and EXPIRE atomic.
const FixedWindowIncrScript = `local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current`

// Result is the outcome of one window check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetS    int
}

// Decision pairs the per-key and per-tool results for one call.
type Decision struct {
	ToolName  string
	PerAPIKey Result
	PerTool   Result
}

// Allowed reports whether both windows admit the call.
func (d Decision) Allowed() bool {
	return d.PerAPIKey.Allowed && d.PerTool.Allowed
}

// ValidateWindow rejects non-positive limit arguments.
func ValidateWindow(requests, windowSeconds int) error {
	if requests <= 0 {
		return errors.New("requests must be greater than 0")
	}
	if windowSeconds <= 0 {
		return errors.New("window_seconds must be greater than 0")
	}
	return nil
}

// WindowBucket is the fixed-window index for a moment in time.
func WindowBucket(nowS, windowSeconds int64) int64 {
	return nowS / windowSeconds
}

// SecondsUntilReset is the whole seconds left in the current window,
// in [1, windowSeconds]; a window boundary reports the full window.
func SecondsUntilReset(nowS, windowSeconds int64) int {
	return int(windowSeconds - nowS%windowSeconds)
}

// Evaluate derives a Result from the post-increment counter value.
func Evaluate(count int64, requests int, nowS, windowSeconds int64) Result {
	remaining := requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(requests),
		Remaining: remaining,
		ResetS:    SecondsUntilReset(nowS, windowSeconds),
	}
}

// APIKeyCounterKey is the per-key counter: rl:<api_key_id>:<bucket>.
func APIKeyCounterKey(apiKeyID string, bucket int64) string {
	return fmt.Sprintf("rl:%s:%d", counterSegment(apiKeyID, UnknownKeySegment), bucket)
}

// ToolCounterKey is the per-tool counter: rl:<api_key_id>:<tool>:<bucket>.
func ToolCounterKey(apiKeyID, toolName string, bucket int64) string {
	return fmt.Sprintf("rl:%s:%s:%d",
		counterSegment(apiKeyID, UnknownKeySegment),
		counterSegment(toolName, UnknownToolSegment),
		bucket,
	)
}

func counterSegment(value, fallback string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	return v
}
