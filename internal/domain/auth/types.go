// Package auth contains the domain types and logic for API key
// authentication: hashing, credential extraction, and the key service.
package auth

import (
	"strings"
	"time"
)

// Role names recognized by the policy file.
const (
	RoleAdmin    = "admin"
	RoleUser     = "user"
	RoleReadOnly = "readonly"
)

// DefaultRole is assigned to keys created without an explicit role.
const DefaultRole = RoleReadOnly

// NormalizeRole lowercases and trims a role name, falling back to
// DefaultRole when the input is blank.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return DefaultRole
	}
	return role
}

// ResolvedKey identifies the API key that authenticated a request.
type ResolvedKey struct {
	// ID is the key's UUID in storage.
	ID string
	// Role is the policy role attached to the key.
	Role string
}

// StoredKey is a persisted key row loaded for verification.
type StoredKey struct {
	ID   string
	Hash string
	Role string
}

// KeyRecord describes a key for listing; the plaintext is never stored.
type KeyRecord struct {
	ID        string
	Role      string
	CreatedAt time.Time
	Revoked   bool
}
