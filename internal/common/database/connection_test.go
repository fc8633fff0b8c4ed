package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateConnectionString(t *testing.T) {
	tests := map[string]struct {
		values   map[string]string
		expected string
	}{
		"empty": {
			values:   map[string]string{},
			expected: "",
		},
		"sorted and quoted": {
			values:   map[string]string{"port": "5432", "host": "localhost", "dbname": "postgres"},
			expected: "dbname='postgres' host='localhost' port='5432'",
		},
		"escapes quotes and backslashes": {
			values:   map[string]string{"password": `it's\secret`},
			expected: `password='it\'s\\secret'`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CreateConnectionString(tc.values))
		})
	}
}

func TestWithDatabase_DoesNotMutateOriginal(t *testing.T) {
	original := PostgresConfig{
		Connection: map[string]string{"host": "localhost", "dbname": "bench"},
		MaxConns:   4,
	}

	other := original.WithDatabase("postgres")

	assert.Equal(t, "bench", original.Connection["dbname"])
	assert.Equal(t, "postgres", other.Connection["dbname"])
	assert.Equal(t, "localhost", other.Connection["host"])
	assert.Equal(t, 4, other.MaxConns)
}

func TestDescribe(t *testing.T) {
	config := PostgresConfig{Connection: map[string]string{
		"host": "db", "port": "5434", "dbname": "bench", "password": "secret",
	}}
	assert.Equal(t, "db:5434/bench", Describe(config))
}
