package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	mem := dsn(":memory:")
	assert.Contains(t, mem, "foreign_keys%281%29")
	assert.NotContains(t, mem, "journal_mode")

	file := dsn("/var/lib/worshiplive/db.sqlite")
	assert.Contains(t, file, "file:/var/lib/worshiplive/db.sqlite?")
	assert.Contains(t, file, "journal_mode%28wal%29")
	assert.Contains(t, file, "_time_format=sqlite")
}

func TestPingAfterClose(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestClockIsUTC(t *testing.T) {
	local := time.Date(2026, 12, 24, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	s, err := New(":memory:", WithClock(func() time.Time { return local }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got := s.utcNow()
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}
