package ratelimit

import "context"

// Limiter checks fixed-window budgets. Both checks count the call
// before answering, so a denied call still consumed one increment.
// Implementation: Redis via the atomic INCR+EXPIRE script.
type Limiter interface {
	// CheckAPIKeyLimit counts this call against the key's own window.
	CheckAPIKeyLimit(ctx context.Context, apiKeyID string, requests, windowSeconds int) (Result, error)

	// CheckToolLimit counts this call against the key's window for one tool.
	CheckToolLimit(ctx context.Context, apiKeyID, toolName string, requests, windowSeconds int) (Result, error)
}
