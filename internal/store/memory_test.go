package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, solar.ErrCacheMiss)

	require.NoError(t, s.Save(ctx, solar.CacheSnapshot{Date: "2026-10-18"}))
	require.NoError(t, s.Save(ctx, solar.CacheSnapshot{Date: "2026-10-19"}))
	assert.Equal(t, 2, s.Saves())

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", snap.Date)

	require.NoError(t, s.Invalidate(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, solar.ErrCacheMiss)
}
