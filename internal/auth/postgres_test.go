package auth

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database named by VERITY_TEST_DATABASE_URL
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("VERITY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VERITY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.db.Exec(ctx, `TRUNCATE access_keys`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t)

	created, err := s.Seed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = s.Seed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	key, err := s.Assign(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, key.Status)

	_, err = s.Assign(ctx, "owner")
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	_, err = s.Assign(ctx, "second")
	require.NoError(t, err)

	_, err = s.Assign(ctx, "third")
	assert.ErrorIs(t, err, ErrNoKeysAvailable)

	revoked, err := s.Revoke(ctx, key.Value)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)

	_, err = s.Revoke(ctx, key.Value)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	_, err = s.Get(ctx, "vk_missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
