package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialectRebind(t *testing.T) {
	q := `SELECT id FROM request_logs WHERE method LIKE ? AND path LIKE ? LIMIT ? OFFSET ?`

	assert.Equal(t, q, dialectSQLite.rebind(q))
	assert.Equal(t,
		`SELECT id FROM request_logs WHERE method LIKE $1 AND path LIKE $2 LIMIT $3 OFFSET $4`,
		dialectPostgres.rebind(q))
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"GET", "%get%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\tmp`, `%c:\\tmp%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, containsPattern(tt.input))
	}
}

func TestDBTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2024, 1, 1, 14, 0, 0, 0, loc)
	out := dbTime(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.True(t, in.Equal(out))

	assert.WithinDuration(t, time.Now(), dbTime(time.Time{}), time.Second)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.False(t, nullInt(0).Valid)
	assert.True(t, nullInt(404).Valid)
}
