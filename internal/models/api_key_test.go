package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"proxygate/internal/models"
)

func TestHashAPIKey(t *testing.T) {
	hash1 := models.HashAPIKey("pg_abc123")
	hash2 := models.HashAPIKey("pg_abc123")
	hash3 := models.HashAPIKey("pg_different")
	assert.Equal(t, hash1, hash2, "same input must produce same hash")
	assert.NotEqual(t, hash1, hash3, "different inputs must produce different hashes")
	assert.Len(t, hash1, 64, "SHA-256 hex is 64 characters")
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "pg_abcde", models.KeyPrefix("pg_abcdefghijkl"))
	assert.Equal(t, "short", models.KeyPrefix("short"))
	assert.Equal(t, "", models.KeyPrefix(""))
}

func TestAPIKeyMatches(t *testing.T) {
	key := &models.APIKey{Key: "pg_secret_value", Enabled: true}
	assert.True(t, key.Matches("pg_secret_value"))
	assert.False(t, key.Matches("pg_secret_valuE"))
	assert.False(t, key.Matches(""))

	empty := &models.APIKey{}
	assert.False(t, empty.Matches(""))
}

func TestAPIKeyIsPlaceholder(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"please enter your key", true},
		{"Your-API-Key-Here", true},
		{"changeme", true},
		{"pg_9f8e7d6c5b4a", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k := &models.APIKey{Key: tt.key}
			assert.Equal(t, tt.want, k.IsPlaceholder())
		})
	}
}

func TestAPIKeyHasPermission(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		enabled     bool
		check       string
		want        bool
	}{
		{"admin grants read", []string{"admin"}, true, "read", true},
		{"admin grants write", []string{"admin"}, true, "write", true},
		{"admin grants admin", []string{"admin"}, true, "admin", true},
		{"write grants read", []string{"write"}, true, "read", true},
		{"write grants write", []string{"write"}, true, "write", true},
		{"write denied admin", []string{"write"}, true, "admin", false},
		{"read only", []string{"read"}, true, "read", true},
		{"read denied write", []string{"read"}, true, "write", false},
		{"wildcard grants all", []string{"*"}, true, "admin", true},
		{"disabled key denied", []string{"admin"}, false, "read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &models.APIKey{Permissions: tt.permissions, Enabled: tt.enabled}
			assert.Equal(t, tt.want, key.HasPermission(tt.check))
		})
	}
}

func TestIsValidPermission(t *testing.T) {
	for _, p := range []string{"read", "write", "admin", "*"} {
		assert.True(t, models.IsValidPermission(p), p)
	}
	assert.False(t, models.IsValidPermission("owner"))
	assert.False(t, models.IsValidPermission(""))
}
