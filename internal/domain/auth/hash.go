package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Stored hashes use the format pbkdf2_sha256$<iterations>$<salt_b64>$<digest_b64>.
// Existing rows only verify while these parameters stay compatible.
const (
	// HashScheme identifies the key derivation for stored hashes.
	HashScheme = "pbkdf2_sha256"
	// HashIterations is the PBKDF2 iteration count for newly issued keys.
	HashIterations = 210_000
	// APIKeyPrefix marks plaintext keys issued by this proxy.
	APIKeyPrefix = "msl_"

	saltBytes   = 16
	tokenBytes  = 32
	digestBytes = 32
)

// GenerateAPIKey returns a new URL-safe random key with the given prefix.
func GenerateAPIKey(prefix string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashAPIKey derives a stored hash for key using PBKDF2-HMAC-SHA256
// with a fresh random salt.
func HashAPIKey(key string, iterations int) (string, error) {
	if iterations <= 0 {
		return "", fmt.Errorf("iterations must be greater than 0")
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(key), salt, iterations, digestBytes, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		HashScheme,
		iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(digest),
	), nil
}

// VerifyAPIKey reports whether key matches the stored hash. Any
// malformed or foreign-scheme hash verifies false; it never panics.
// The digest comparison is constant time.
func VerifyAPIKey(key, stored string) bool {
	parts := strings.SplitN(stored, "$", 4)
	if len(parts) != 4 || parts[0] != HashScheme {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return false
	}
	digest, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) == 0 {
		return false
	}
	computed := pbkdf2.Key([]byte(key), salt, iterations, len(digest), sha256.New)
	return hmac.Equal(computed, digest)
}
