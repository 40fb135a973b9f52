package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

func TestRedisStore_Contract(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(mr.Addr(), 0, "", "")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, solar.ErrCacheMiss)

	v := 3.0
	snap := solar.CacheSnapshot{
		Date:             "2026-10-19",
		Forecasts:        solar.SiteCategoryData{"site": {{PeriodEnd: "2026-10-19T12:00:00Z", PVEstimate: &v}}},
		EstimatedActuals: solar.SiteCategoryData{"site": nil},
	}
	require.NoError(t, s.Save(ctx, snap))

	stored, err := mr.Get(DefaultRedisKey)
	require.NoError(t, err)
	assert.Contains(t, stored, `"date": "2026-10-19"`)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", loaded.Date)
	assert.InDelta(t, 3.0, loaded.Forecasts["site"][0].Estimate(), 1e-9)

	require.NoError(t, s.Invalidate(ctx))
	assert.False(t, mr.Exists(DefaultRedisKey))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, solar.ErrCacheMiss)
}

func TestRedisStore_Corrupt(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("custom", "not json"))

	s, err := NewRedisStore(mr.Addr(), 0, "", "custom")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, solar.ErrCacheCorrupt)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(addr, 0, "", "")
	assert.Error(t, err)
}
