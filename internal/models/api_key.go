package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Permission levels, ordered read < write < admin.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// APIKey is a key accepted by the admin API. Keys are configured, not stored;
// the raw value only ever leaves the config as an 8-character prefix.
type APIKey struct {
	Key         string   `yaml:"key" json:"-"`
	Name        string   `yaml:"name" json:"name"`
	Permissions []string `yaml:"permissions" json:"permissions"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
}

// placeholderMarkers identify keys copied verbatim from example configs.
var placeholderMarkers = []string{"please enter", "your-api-key", "changeme"}

// IsValidPermission reports whether p is a known permission or the wildcard.
func IsValidPermission(p string) bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin, "*":
		return true
	}
	return false
}

// HashAPIKey computes the SHA-256 hex digest of a raw API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the first eight characters of a key, the only part of a
// credential that is logged or persisted.
func KeyPrefix(rawKey string) string {
	runes := []rune(rawKey)
	if len(runes) > 8 {
		return string(runes[:8])
	}
	return rawKey
}

// Matches compares a presented token against the key in constant time.
func (ak *APIKey) Matches(token string) bool {
	if token == "" || ak.Key == "" {
		return false
	}
	a, b := HashAPIKey(ak.Key), HashAPIKey(token)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsPlaceholder reports whether the key still holds an example value.
func (ak *APIKey) IsPlaceholder() bool {
	lower := strings.ToLower(ak.Key)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// HasPermission returns true when the key is enabled and possesses the required permission.
func (ak *APIKey) HasPermission(required string) bool {
	if !ak.Enabled {
		return false
	}
	for _, p := range ak.Permissions {
		switch p {
		case "*", PermissionAdmin:
			return true
		case PermissionWrite:
			if required == PermissionRead || required == PermissionWrite {
				return true
			}
		case required:
			return true
		}
	}
	return false
}
