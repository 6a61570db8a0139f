package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Microck/bansho/internal/domain/auth"
)

// KeyStore implements auth.KeyStore on top of the api_keys table.
type KeyStore struct {
	db Querier
}

// NewKeyStore creates a key store backed by the given pool.
func NewKeyStore(db Querier) *KeyStore {
	return &KeyStore{db: db}
}

// Compile-time check that KeyStore implements the domain port.
var _ auth.KeyStore = (*KeyStore)(nil)

// InsertKey stores a new key row. The id must be a UUID string.
func (s *KeyStore) InsertKey(ctx context.Context, id, keyHash, role string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO api_keys (id, key_hash, role) VALUES ($1, $2, $3);",
		parsed, keyHash, role,
	)
	return err
}

// ActiveKeys returns every non-revoked key row.
func (s *KeyStore) ActiveKeys(ctx context.Context) ([]auth.StoredKey, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, key_hash, role FROM api_keys WHERE revoked_at IS NULL;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.StoredKey
	for rows.Next() {
		var (
			id      uuid.UUID
			keyHash string
			role    string
		)
		if err := rows.Scan(&id, &keyHash, &role); err != nil {
			return nil, err
		}
		out = append(out, auth.StoredKey{ID: id.String(), Hash: keyHash, Role: role})
	}
	return out, rows.Err()
}

// ListKeys returns all keys, newest first.
func (s *KeyStore) ListKeys(ctx context.Context) ([]auth.KeyRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, role, created_at, (revoked_at IS NOT NULL) AS revoked
		FROM api_keys
		ORDER BY created_at DESC;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.KeyRecord
	for rows.Next() {
		var rec auth.KeyRecord
		var id uuid.UUID
		if err := rows.Scan(&id, &rec.Role, &rec.CreatedAt, &rec.Revoked); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkRevoked sets revoked_at on an active key. A malformed id matches
// no row rather than erroring, mirroring lookup-by-unknown-id.
func (s *KeyStore) MarkRevoked(ctx context.Context, id string) (bool, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return false, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL;
	`, parsed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
