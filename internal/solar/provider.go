package solar

import (
	"context"
)

// Provider abstracts the remote source of half-hourly PV records.
type Provider interface {
	Name() string
	FetchCategory(ctx context.Context, site string, category Category) ([]RawRecord, error)
}

// Cache is the contract every snapshot store must satisfy.
// Load returns ErrCacheMiss when nothing is stored and ErrCacheCorrupt when
// the stored snapshot cannot be decoded.
type Cache interface {
	Load(ctx context.Context) (CacheSnapshot, error)
	Save(ctx context.Context, snapshot CacheSnapshot) error
	Invalidate(ctx context.Context) error
}

// Metrics receives service events. A nil Metrics is valid.
type Metrics interface {
	ObserveFetch(category Category, err error)
	ObserveCache(outcome string)
	ObserveAggregate(result AggregateResult)
}

// Cache lookup outcomes reported to Metrics.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheStale   = "stale"
	CacheCorrupt = "corrupt"
	CacheForced  = "forced"
)

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(Category, error)     {}
func (noopMetrics) ObserveCache(string)              {}
func (noopMetrics) ObserveAggregate(AggregateResult) {}
