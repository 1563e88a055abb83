package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"00001_create_users.sql",
		"00002_create_scans.sql",
		"00003_create_chats.sql",
	}, names)

	for _, name := range names {
		data, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		body := string(data)
		assert.Contains(t, body, "-- +goose Up", name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestUsersEmailIsUnique(t *testing.T) {
	data, err := fs.ReadFile(Migrations, "00001_create_users.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email"))
}
