package auth

import "context"

// KeyStore provides persistence for API keys.
// This interface is defined in the domain to avoid circular imports.
// Implementation: PostgreSQL.
type KeyStore interface {
	// InsertKey stores a new key row.
	InsertKey(ctx context.Context, id, keyHash, role string) error

	// ActiveKeys returns every non-revoked key row so callers can
	// verify a presented key against the full active set.
	ActiveKeys(ctx context.Context) ([]StoredKey, error)

	// ListKeys returns all keys, newest first.
	ListKeys(ctx context.Context) ([]KeyRecord, error)

	// MarkRevoked sets revoked_at on an active key and reports whether
	// a row changed.
	MarkRevoked(ctx context.Context, id string) (bool, error)
}
