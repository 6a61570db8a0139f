package auth

import (
	"net/http"
	"strings"
)

// ExtractAPIKey pulls the presented credential from transport headers
// and the request's _meta mirrors. Precedence: Authorization bearer
// token, then X-API-Key, then an api_key query parameter. Meta may
// carry "headers"/"header" and "query"/"query_params" maps for
// transports that cannot set real headers; a real transport header
// wins over its meta mirror. Returns "" when nothing usable is found.
func ExtractAPIKey(header http.Header, meta map[string]any) string {
	headers := map[string]string{}
	if meta != nil {
		mergeStringMapping(headers, meta["headers"])
		mergeStringMapping(headers, meta["header"])
	}
	for k, vv := range header {
		if len(vv) == 0 {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(vv[0])
	}

	if bearer := extractBearer(headers["authorization"]); bearer != "" {
		return bearer
	}
	if v := strings.TrimSpace(headers["x-api-key"]); v != "" {
		return v
	}

	query := map[string]string{}
	if meta != nil {
		mergeStringMapping(query, meta["query"])
		mergeStringMapping(query, meta["query_params"])
	}
	if v := strings.TrimSpace(query["api_key"]); v != "" {
		return v
	}
	return ""
}

// extractBearer parses "Bearer <token>" case-insensitively.
func extractBearer(authHeader string) string {
	raw := strings.TrimSpace(authHeader)
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// mergeStringMapping copies string-valued entries of a loosely typed
// map into target under lowercased keys, skipping blanks.
func mergeStringMapping(target map[string]string, source any) {
	m, ok := source.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		vs, ok := v.(string)
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		val := strings.TrimSpace(vs)
		if key == "" || val == "" {
			continue
		}
		target[key] = val
	}
}
