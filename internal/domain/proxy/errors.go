package proxy

import (
	"errors"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Client-visible error messages. Internal failure detail stays in the
// audit log and never crosses the wire.
const (
	UnauthorizedMessage    = "Unauthorized"
	ForbiddenMessage       = "Forbidden"
	TooManyRequestsMessage = "Too Many Requests"
	UpstreamFailureMessage = "Upstream request failed"
	InternalErrorMessage   = "Internal Server Error"
)

// asWireError returns the JSON-RPC error carried by err, or nil when
// err is not a wire error.
func asWireError(err error) *jsonrpc.Error {
	var werr *jsonrpc.Error
	if errors.As(err, &werr) {
		return werr
	}
	return nil
}

// normalizeStatus maps a wire error code into the audit status range.
// Codes outside 0..999 fall back to the given default.
func normalizeStatus(code int64, fallback int) int {
	if code >= 0 && code <= 999 {
		return int(code)
	}
	return fallback
}
