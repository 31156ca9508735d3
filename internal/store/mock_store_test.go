// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Ensures it behaves like the SQLite store for callers

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_RecentAndStats(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Record(ctx, newInvocation("get_forecast", OutcomeOK, base, 100*time.Millisecond)))
	require.NoError(t, m.Record(ctx, newInvocation("get_forecast", OutcomeError, base, 300*time.Millisecond)))
	last := newInvocation("get_current_weather", OutcomeOK, base, 10*time.Millisecond)
	require.NoError(t, m.Record(ctx, last))

	recent, err := m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, last.ID, recent[0].ID)

	stats, err := m.Stats(ctx, StatsFilter{})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "get_current_weather", stats[0].Tool)
	assert.Equal(t, int64(2), stats[1].Total)
	assert.Equal(t, 200*time.Millisecond, stats[1].AvgDuration)

	got, err := m.Get(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, "get_current_weather", got.Tool)

	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_Err(t *testing.T) {
	m := NewMockStore()
	m.Err = errors.New("disk full")

	err := m.Record(context.Background(), &Invocation{ID: "x"})
	assert.EqualError(t, err, "disk full")
	assert.Empty(t, m.All())
}
