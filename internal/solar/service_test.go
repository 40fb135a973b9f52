package solar_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
	"github.com/i474232898/solar-yield-forecast/internal/store"
)

var today = time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)

func fixedNow() time.Time { return today }

// fakeProvider serves fixed records per (site, category) and counts calls.
type fakeProvider struct {
	mu      sync.Mutex
	records map[string][]solar.RawRecord
	fail    map[string]error
	calls   []string
	block   bool
}

func key(site string, cat solar.Category) string { return site + "/" + string(cat) }

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchCategory(ctx context.Context, site string, cat solar.Category) ([]solar.RawRecord, error) {
	p.mu.Lock()
	p.calls = append(p.calls, key(site, cat))
	err := p.fail[key(site, cat)]
	recs := p.records[key(site, cat)]
	block := p.block
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return recs, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func records(first string, n int, estimate float64) []solar.RawRecord {
	t, err := time.Parse(time.RFC3339, first)
	if err != nil {
		panic(err)
	}
	out := make([]solar.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		v := estimate
		out = append(out, solar.RawRecord{
			PeriodEnd:  t.Add(time.Duration(i) * 30 * time.Minute).Format("2006-01-02T15:04:05.0000000Z"),
			PVEstimate: &v,
		})
	}
	return out
}

func newProvider() *fakeProvider {
	return &fakeProvider{
		records: map[string][]solar.RawRecord{
			key("east", solar.CategoryForecasts):        records("2026-10-19T09:30:00Z", 168, 2.0),
			key("east", solar.CategoryEstimatedActuals): records("2026-10-15T23:00:00Z", 168, 2.0),
			key("west", solar.CategoryForecasts):        records("2026-10-19T09:30:00Z", 168, 1.0),
			key("west", solar.CategoryEstimatedActuals): records("2026-10-15T23:00:00Z", 168, 1.0),
		},
		fail: map[string]error{},
	}
}

func newService(p solar.Provider, c solar.Cache, concurrency int) *solar.Service {
	return solar.NewService(p, c, solar.Options{
		Sites:            []string{"east", "west"},
		Calibration:      1.0,
		FetchConcurrency: concurrency,
		Now:              fixedNow,
	})
}

func snapshotFor(date string) solar.CacheSnapshot {
	return solar.CacheSnapshot{
		Date:             date,
		Forecasts:        solar.SiteCategoryData{"east": records("2026-10-10T00:00:00Z", 48*3, 1.0)},
		EstimatedActuals: solar.SiteCategoryData{"east": nil},
	}
}

func TestService_FetchesWhenCacheEmpty(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	cache := store.NewMemoryStore()
	svc := newService(p, cache, 1)

	snap, err := svc.Snapshot(ctx, solar.ReloadIfStale)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-19", snap.Date)
	assert.Len(t, snap.Forecasts, 2)
	assert.Len(t, snap.EstimatedActuals, 2)
	assert.Equal(t, []string{
		"east/forecasts", "west/forecasts", "east/estimated_actuals", "west/estimated_actuals",
	}, p.calls, "sequential fetch runs forecasts before estimated actuals")

	saved, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, saved)

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Equal(t, snap, last)
}

func TestService_ReloadPolicy(t *testing.T) {
	for _, tc := range []struct {
		name      string
		mode      solar.ReloadMode
		cached    *solar.CacheSnapshot
		wantFetch bool
		wantDate  string
	}{
		{name: "never uses stale cache", mode: solar.ReloadNever, cached: ptr(snapshotFor("2026-10-01")), wantDate: "2026-10-01"},
		{name: "never fetches when absent", mode: solar.ReloadNever, wantFetch: true, wantDate: "2026-10-19"},
		{name: "if-stale uses today's cache", mode: solar.ReloadIfStale, cached: ptr(snapshotFor("2026-10-19")), wantDate: "2026-10-19"},
		{name: "if-stale refetches old cache", mode: solar.ReloadIfStale, cached: ptr(snapshotFor("2026-10-18")), wantFetch: true, wantDate: "2026-10-19"},
		{name: "if-stale refetches undated cache", mode: solar.ReloadIfStale, cached: ptr(snapshotFor("")), wantFetch: true, wantDate: "2026-10-19"},
		{name: "force refetches today's cache", mode: solar.ReloadForce, cached: ptr(snapshotFor("2026-10-19")), wantFetch: true, wantDate: "2026-10-19"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			p := newProvider()
			cache := store.NewMemoryStore()
			if tc.cached != nil {
				require.NoError(t, cache.Save(ctx, *tc.cached))
			}

			snap, err := newService(p, cache, 1).Snapshot(ctx, tc.mode)
			require.NoError(t, err)

			assert.Equal(t, tc.wantDate, snap.Date)
			if tc.wantFetch {
				assert.Equal(t, 4, p.callCount())
				assert.Len(t, snap.Forecasts, 2)
			} else {
				assert.Zero(t, p.callCount())
				assert.Equal(t, *tc.cached, snap)
			}
		})
	}
}

func TestService_DefaultReloadIsIfStale(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	cache := store.NewMemoryStore()
	require.NoError(t, cache.Save(ctx, snapshotFor("2026-10-18")))

	svc := newService(p, cache, 1)
	assert.Equal(t, solar.ReloadIfStale, svc.DefaultReload())

	_, err := svc.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, p.callCount())
}

func TestService_ForceDeletesCacheFileBeforeFetching(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "solcast.json")
	cache := store.NewFileStore(path)
	require.NoError(t, cache.Save(ctx, snapshotFor("2026-10-19")))

	p := newProvider()
	p.fail[key("east", solar.CategoryForecasts)] = &solar.TransportError{Site: "east", Category: solar.CategoryForecasts, StatusCode: 500}

	_, err := newService(p, cache, 1).Snapshot(ctx, solar.ReloadForce)
	require.ErrorIs(t, err, solar.ErrTransport)

	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, solar.ErrCacheMiss, "force removes the cache even when the fetch then fails")
}

func TestService_CorruptCacheTriggersFetch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "solcast.json")
	require.NoError(t, writeFile(path, "{not json"))

	p := newProvider()
	snap, err := newService(p, store.NewFileStore(path), 1).Snapshot(ctx, solar.ReloadNever)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", snap.Date)
	assert.Equal(t, 4, p.callCount())
}

func TestService_TransportFailureKeepsCacheAndMemory(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryStore()
	p := newProvider()
	svc := newService(p, cache, 1)

	first, err := svc.Snapshot(ctx, solar.ReloadForce)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Saves())

	p.fail[key("west", solar.CategoryEstimatedActuals)] = &solar.TransportError{Site: "west", Category: solar.CategoryEstimatedActuals, StatusCode: 503}
	// Stale cached copy must survive a failed refresh.
	stale := snapshotFor("2026-10-18")
	require.NoError(t, cache.Save(ctx, stale))

	_, err = svc.Snapshot(ctx, solar.ReloadIfStale)
	require.Error(t, err)
	var te *solar.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "west", te.Site)
	assert.Equal(t, 503, te.StatusCode)

	saved, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, stale, saved, "no partial cache write")
	assert.Equal(t, 2, cache.Saves())

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Equal(t, first, last)
}

func TestService_ConcurrentFetchFailFast(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	p.block = true
	p.fail[key("east", solar.CategoryForecasts)] = &solar.TransportError{Site: "east", Category: solar.CategoryForecasts, StatusCode: 401}
	cache := store.NewMemoryStore()

	done := make(chan error, 1)
	go func() {
		_, err := newService(p, cache, 4).Snapshot(ctx, solar.ReloadForce)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, solar.ErrTransport)
	case <-time.After(5 * time.Second):
		t.Fatal("sibling fetches were not cancelled")
	}
	assert.Zero(t, cache.Saves())
}

func TestService_ConcurrentFetchMatchesSequential(t *testing.T) {
	ctx := context.Background()

	seq, err := newService(newProvider(), store.NewMemoryStore(), 1).Yield(ctx, 2, solar.ReloadForce)
	require.NoError(t, err)
	par, err := newService(newProvider(), store.NewMemoryStore(), 4).Yield(ctx, 2, solar.ReloadForce)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestService_Yield(t *testing.T) {
	ctx := context.Background()
	svc := solar.NewService(newProvider(), store.NewMemoryStore(), solar.Options{
		Sites:       []string{"east", "west"},
		Calibration: 0.5,
		Now:         fixedNow,
	})

	res, err := svc.Yield(ctx, 7, "")
	require.NoError(t, err)

	// Estimated actuals end at 2026-10-19T10:30, forecasts start at 09:30.
	// The 19th is tagged forecast because forecasts are processed first.
	var got []string
	for _, d := range res.Days {
		got = append(got, d.Date+" "+d.Tag())
	}
	assert.Equal(t, []string{
		"2026-10-16 Estimated",
		"2026-10-17 Estimated",
		"2026-10-18 Estimated",
		"2026-10-19 Forecast",
		"2026-10-20 Forecast",
		"2026-10-21 Forecast",
	}, got)

	// east 2kW + west 1kW over a full day is 72 kWh
	for _, d := range res.Days {
		assert.InDelta(t, 72.0, d.KWh, 1e-9, d.Date)
	}
	assert.Equal(t, 0.5, res.Calibration)
	assert.InDelta(t, 72.0*6*0.5, res.CalibratedTotal(), 1e-9)
	assert.Equal(t, 2*3, res.Diagnostics.Overlaps, "three overlapping slots per site on the 19th")
}

func TestService_YieldNoData(t *testing.T) {
	p := &fakeProvider{records: map[string][]solar.RawRecord{}, fail: map[string]error{}}
	svc := newService(p, store.NewMemoryStore(), 1)

	_, err := svc.Yield(context.Background(), 7, solar.ReloadForce)
	assert.ErrorIs(t, err, solar.ErrNoData)
}

func TestService_RefreshRunID(t *testing.T) {
	svc := newService(newProvider(), store.NewMemoryStore(), 2)

	a, err := svc.Refresh(context.Background(), solar.ReloadForce)
	require.NoError(t, err)
	b, err := svc.Refresh(context.Background(), solar.ReloadForce)
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, "2026-10-19", a.Date)
	assert.Equal(t, 2, a.Sites)
}

type countingMetrics struct {
	fetches atomic.Int32
	cache   []string
	mu      sync.Mutex
}

func (m *countingMetrics) ObserveFetch(solar.Category, error) {
	m.fetches.Add(1)
}

func (m *countingMetrics) ObserveCache(outcome string) {
	m.mu.Lock()
	m.cache = append(m.cache, outcome)
	m.mu.Unlock()
}

func (m *countingMetrics) ObserveAggregate(solar.AggregateResult) {}

func TestService_Metrics(t *testing.T) {
	ctx := context.Background()
	m := &countingMetrics{}
	svc := solar.NewService(newProvider(), store.NewMemoryStore(), solar.Options{
		Sites:   []string{"east", "west"},
		Metrics: m,
		Now:     fixedNow,
	})

	_, err := svc.Snapshot(ctx, solar.ReloadIfStale)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx, solar.ReloadIfStale)
	require.NoError(t, err)

	assert.EqualValues(t, 4, m.fetches.Load())
	assert.Equal(t, []string{solar.CacheMiss, solar.CacheHit}, m.cache)
}

func ptr[T any](v T) *T { return &v }

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
