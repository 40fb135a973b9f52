package solar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/solar-yield-forecast/internal/common"
)

// Options configures a Service.
type Options struct {
	Sites       []string
	Calibration float64
	Reload      ReloadMode

	// FetchConcurrency bounds parallel provider calls; values below 1 fetch
	// sequentially.
	FetchConcurrency int

	Logger  *common.Logger
	Metrics Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates the provider, the snapshot cache and aggregation.
type Service struct {
	provider Provider
	cache    Cache
	opts     Options
	log      *common.Logger
	metrics  Metrics

	mu   sync.RWMutex
	last *CacheSnapshot
}

// NewService creates a new Service.
func NewService(provider Provider, cache Cache, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Calibration == 0 {
		opts.Calibration = 1
	}
	if opts.Reload == "" {
		opts.Reload = ReloadIfStale
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Service{
		provider: provider,
		cache:    cache,
		opts:     opts,
		log:      opts.Logger,
		metrics:  m,
	}
}

// Today returns the current local calendar date as YYYY-MM-DD.
func (s *Service) Today() string {
	return s.opts.Now().Format(time.DateOnly)
}

// Calibration returns the configured calibration factor.
func (s *Service) Calibration() float64 {
	return s.opts.Calibration
}

// DefaultReload returns the configured reload mode.
func (s *Service) DefaultReload() ReloadMode {
	return s.opts.Reload
}

// Last returns the last snapshot successfully loaded or fetched by this
// process.
func (s *Service) Last() (CacheSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CacheSnapshot{}, false
	}
	return *s.last, true
}

func (s *Service) remember(snap CacheSnapshot) {
	s.mu.Lock()
	s.last = &snap
	s.mu.Unlock()
}

// Snapshot returns raw data for today following the reload mode. An empty
// mode uses the configured default. A failed fetch leaves both the cache
// and the in-memory snapshot untouched.
func (s *Service) Snapshot(ctx context.Context, mode ReloadMode) (CacheSnapshot, error) {
	if mode == "" {
		mode = s.opts.Reload
	}
	today := s.Today()

	if mode == ReloadForce {
		s.metrics.ObserveCache(CacheForced)
		if err := s.cache.Invalidate(ctx); err != nil {
			return CacheSnapshot{}, fmt.Errorf("invalidate cache: %w", err)
		}
	} else {
		snap, err := s.cache.Load(ctx)
		switch {
		case err == nil && (mode == ReloadNever || snap.Date == today):
			s.metrics.ObserveCache(CacheHit)
			s.log.Infof("using data for %s from cache", snap.Date)
			s.remember(snap)
			return snap, nil
		case err == nil:
			s.metrics.ObserveCache(CacheStale)
			s.log.Debugf("cached data is for %q, refreshing for %s", snap.Date, today)
		case errors.Is(err, ErrCacheCorrupt):
			s.metrics.ObserveCache(CacheCorrupt)
			s.log.Errorf("ignoring cache: %v", err)
		case errors.Is(err, ErrCacheMiss):
			s.metrics.ObserveCache(CacheMiss)
		default:
			return CacheSnapshot{}, fmt.Errorf("load cache: %w", err)
		}
	}

	s.log.Infof("loading data from %s for %s", s.provider.Name(), today)
	snap, err := s.fetch(ctx, today)
	if err != nil {
		return CacheSnapshot{}, err
	}

	if err := s.cache.Save(ctx, snap); err != nil {
		return CacheSnapshot{}, fmt.Errorf("save cache: %w", err)
	}
	s.remember(snap)
	return snap, nil
}

// RefreshResult summarises one Refresh call.
type RefreshResult struct {
	RunID string `json:"run_id"`
	Date  string `json:"date"`
	Sites int    `json:"sites"`
}

// Refresh loads or fetches a snapshot and tags the run with an id for log
// correlation.
func (s *Service) Refresh(ctx context.Context, mode ReloadMode) (RefreshResult, error) {
	runID := uuid.NewString()
	start := s.opts.Now()
	s.log.Debugf("refresh %s started (reload=%s)", runID, mode)

	snap, err := s.Snapshot(ctx, mode)
	if err != nil {
		s.log.Errorf("refresh %s failed: %v", runID, err)
		return RefreshResult{RunID: runID}, err
	}

	s.log.Infof("refresh %s completed in %s", runID, s.opts.Now().Sub(start))
	return RefreshResult{
		RunID: runID,
		Date:  snap.Date,
		Sites: len(snap.Forecasts),
	}, nil
}

// Yield returns the daily window for the given number of days.
func (s *Service) Yield(ctx context.Context, days int, mode ReloadMode) (AggregateResult, error) {
	snap, err := s.Snapshot(ctx, mode)
	if err != nil {
		return AggregateResult{}, err
	}
	return s.AggregateSnapshot(snap, days)
}

// AggregateSnapshot aggregates snap with the configured calibration and logs
// its diagnostics.
func (s *Service) AggregateSnapshot(snap CacheSnapshot, days int) (AggregateResult, error) {
	res, err := Aggregate(snap.Forecasts, snap.EstimatedActuals, days, s.opts.Calibration)
	s.logDiagnostics(res)
	if err != nil {
		return res, err
	}
	s.metrics.ObserveAggregate(res)
	return res, nil
}

func (s *Service) logDiagnostics(res AggregateResult) {
	d := res.Diagnostics
	if d.Overlaps > 0 {
		s.log.Debugf("%d overlapping samples were ignored", d.Overlaps)
	}
	if d.Malformed > 0 {
		s.log.Infof("%d records without a usable period_end were skipped", d.Malformed)
	}
	for _, g := range d.Gaps {
		s.log.Infof("%s rid %s should have %d x 30 min values. %d values found", g.Date, g.Site, SlotsPerDay, g.Slots)
	}
}

type fetchJob struct {
	category Category
	site     string
}

// fetch calls the provider once per (category, site). The first failure
// cancels outstanding calls and nothing is returned.
func (s *Service) fetch(ctx context.Context, today string) (CacheSnapshot, error) {
	jobs := make([]fetchJob, 0, len(Categories)*len(s.opts.Sites))
	for _, cat := range Categories {
		for _, site := range s.opts.Sites {
			jobs = append(jobs, fetchJob{category: cat, site: site})
		}
	}
	results := make([][]RawRecord, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			records, err := s.provider.FetchCategory(gctx, job.site, job.category)
			s.metrics.ObserveFetch(job.category, err)
			if err != nil {
				return err
			}
			s.log.Debugf("fetched %d %s records for %s", len(records), job.category, job.site)
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CacheSnapshot{}, err
	}

	snap := CacheSnapshot{
		Date:             today,
		Forecasts:        make(SiteCategoryData, len(s.opts.Sites)),
		EstimatedActuals: make(SiteCategoryData, len(s.opts.Sites)),
	}
	for i, job := range jobs {
		if job.category == CategoryForecasts {
			snap.Forecasts[job.site] = results[i]
		} else {
			snap.EstimatedActuals[job.site] = results[i]
		}
	}
	return snap, nil
}
