package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Operator token format: hz_admin_{secret}
const (
	AdminTokenPrefix    = "hz_admin_"
	AdminTokenSecretLen = 48 // hex encoded 24 bytes
)

var adminTokenRegex = regexp.MustCompile(`^hz_admin_[a-f0-9]{48}$`)

// GeneratedToken is a new operator token and the hash to configure.
type GeneratedToken struct {
	Plaintext string // shown once
	Hash      string // value for ADMIN_TOKEN_HASH
}

// GenerateAdminToken creates a random operator token and its Argon2id hash.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, AdminTokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := AdminTokenPrefix + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}
	return &GeneratedToken{Plaintext: plaintext, Hash: hash}, nil
}

// IsAdminTokenFormat reports whether s looks like an operator token.
// Middleware uses it to pick the verification path before any hashing.
func IsAdminTokenFormat(s string) bool {
	return adminTokenRegex.MatchString(s)
}
