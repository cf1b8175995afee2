package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_create_users.sql", names[0])

	content, err := migrationFiles.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "users_email_key"))

	assert.Equal(t, []string{"0001_create_users.sql", "0002_profile_details.sql"}, names)
	content, err = migrationFiles.ReadFile("migrations/0002_profile_details.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "ON DELETE CASCADE")
}

func TestRunMigrations_NilPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}
