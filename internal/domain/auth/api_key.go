package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// APIKeyService issues, resolves, and revokes API keys.
type APIKeyService struct {
	store KeyStore
}

// NewAPIKeyService creates a new APIKeyService with the given store.
func NewAPIKeyService(store KeyStore) *APIKeyService {
	return &APIKeyService{store: store}
}

// Create issues a new key with the given role (DefaultRole when blank)
// and returns its id together with the plaintext. The plaintext exists
// only in this return value; storage keeps the hash.
func (s *APIKeyService) Create(ctx context.Context, role string) (string, string, error) {
	role = NormalizeRole(role)
	plaintext, err := GenerateAPIKey(APIKeyPrefix)
	if err != nil {
		return "", "", err
	}
	hash, err := HashAPIKey(plaintext, HashIterations)
	if err != nil {
		return "", "", err
	}
	id := uuid.New().String()
	if err := s.store.InsertKey(ctx, id, hash, role); err != nil {
		return "", "", fmt.Errorf("insert api key: %w", err)
	}
	return id, plaintext, nil
}

// Resolve verifies a presented key against every active row and
// returns the matching key, or nil when the key is blank or unknown.
// The whole active set is always scanned so timing does not depend on
// row position; when more than one row verifies, the last one wins.
func (s *APIKeyService) Resolve(ctx context.Context, presented string) (*ResolvedKey, error) {
	if presented == "" {
		return nil, nil
	}
	rows, err := s.store.ActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load api keys: %w", err)
	}
	var resolved *ResolvedKey
	for _, row := range rows {
		if VerifyAPIKey(presented, row.Hash) {
			resolved = &ResolvedKey{ID: row.ID, Role: row.Role}
		}
	}
	return resolved, nil
}

// Revoke marks a key revoked and reports whether a row changed.
// A malformed id reports false without touching the store.
func (s *APIKeyService) Revoke(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return s.store.MarkRevoked(ctx, id)
}

// List returns all keys, newest first.
func (s *APIKeyService) List(ctx context.Context) ([]KeyRecord, error) {
	return s.store.ListKeys(ctx)
}
