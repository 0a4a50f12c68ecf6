package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worshiplive/internal/models"
)

func TestSessionLifecycle(t *testing.T) {
	s := newTestStoreWithMigrations(t)
	ctx := context.Background()

	op, err := s.CreateFirstOperator("pastor", "hash")
	require.NoError(t, err)

	token, err := s.CreateSession(ctx, op.ID, time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, token, 64)

	got, err := s.SessionOperator(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, "pastor", got.Username)

	require.NoError(t, s.DeleteSession(ctx, token))
	_, err = s.SessionOperator(ctx, token)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSessionTokenIsNotStored(t *testing.T) {
	s := newTestStoreWithMigrations(t)
	ctx := context.Background()

	op, err := s.CreateFirstOperator("pastor", "hash")
	require.NoError(t, err)
	token, err := s.CreateSession(ctx, op.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	var id string
	require.NoError(t, s.db.QueryRow(`SELECT id FROM sessions`).Scan(&id))
	assert.NotEqual(t, token, id)
	assert.Equal(t, sessionID(token), id)

	_, err = s.SessionOperator(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound, "the stored id is not a usable token")
}

func TestExpiredSessionsArePurged(t *testing.T) {
	s := newTestStoreWithMigrations(t)
	ctx := context.Background()

	op, err := s.CreateFirstOperator("pastor", "hash")
	require.NoError(t, err)

	token, err := s.CreateSession(ctx, op.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	_, err = s.SessionOperator(ctx, token)
	assert.ErrorIs(t, err, models.ErrNotFound)

	n, err := s.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateFirstOperatorOnlyOnce(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	_, err := s.CreateFirstOperator("pastor", "hash")
	require.NoError(t, err)

	_, err = s.CreateFirstOperator("deacon", "hash")
	assert.ErrorIs(t, err, ErrSetupComplete)

	n, err := s.CountOperators()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	op, hash, err := s.GetOperatorByUsername("pastor")
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, "pastor", op.Username)
}
