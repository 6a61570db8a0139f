package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Microck/bansho/internal/domain/audit"
	"github.com/Microck/bansho/internal/domain/auth"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// handleIndex serves the embedded viewer page. The page itself is
// static; it calls the events API with a key the operator supplies.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusNotFound, "Not Found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pageHTML)
}

// handleEvents serves the filtered audit event listing.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusNotFound, "Not Found")
		return
	}

	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.events.RecentEvents(r.Context(), audit.RecentQuery{
		Limit:    filters.Limit,
		APIKeyID: deref(filters.APIKeyID),
		ToolName: deref(filters.ToolName),
	})
	if err != nil {
		s.logger.Error("recent events query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Dashboard query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(events),
		"filters": filters,
		"events":  events,
	})
}

// authenticate resolves the presented key and requires the admin role.
// On failure it writes the error response and reports false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.ResolvedKey, bool) {
	presented := auth.ExtractAPIKey(r.Header, map[string]any{
		"query": map[string]any{"api_key": r.URL.Query().Get("api_key")},
	})
	if presented == "" {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	resolved, err := s.credentials.Resolve(r.Context(), presented)
	if err != nil || resolved == nil {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	if auth.NormalizeRole(resolved.Role) != auth.RoleAdmin {
		writeJSONError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}

	return resolved, true
}

// eventFilters is the parsed query filter set, echoed back in the
// response so clients see what actually applied.
type eventFilters struct {
	APIKeyID *string `json:"api_key_id"`
	ToolName *string `json:"tool_name"`
	Limit    int     `json:"limit"`
}

func parseFilters(query url.Values) (eventFilters, error) {
	filters := eventFilters{}
	if v := strings.TrimSpace(query.Get("api_key_id")); v != "" {
		filters.APIKeyID = &v
	}
	if v := strings.TrimSpace(query.Get("tool_name")); v != "" {
		filters.ToolName = &v
	}

	limitValue := strings.TrimSpace(query.Get("limit"))
	if limitValue == "" {
		filters.Limit = defaultEventLimit
		return filters, nil
	}
	parsed, err := strconv.Atoi(limitValue)
	if err != nil {
		return eventFilters{}, fmt.Errorf("limit must be an integer")
	}
	if parsed < 1 || parsed > maxEventLimit {
		return eventFilters{}, fmt.Errorf("limit must be between 1 and %d", maxEventLimit)
	}
	filters.Limit = parsed
	return filters, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	b, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
