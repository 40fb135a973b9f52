package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// Collector implements solar.Metrics with Prometheus collectors.
type Collector struct {
	fetches   *prometheus.CounterVec
	cache     *prometheus.CounterVec
	overlaps  prometheus.Counter
	gaps      prometheus.Gauge
	totalKWh  prometheus.Gauge
	windowLen prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_yield",
			Name:      "fetch_requests_total",
			Help:      "Solcast requests by category and outcome.",
		}, []string{"category", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_yield",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by outcome.",
		}, []string{"outcome"}),
		overlaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solar_yield",
			Name:      "overlapping_samples_total",
			Help:      "Samples dropped because the slot was already counted.",
		}),
		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "solar_yield",
			Name:      "slot_gaps",
			Help:      "Site days in the last window without 48 half-hour slots.",
		}),
		totalKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "solar_yield",
			Name:      "window_total_kwh",
			Help:      "Calibrated total yield of the last window.",
		}),
		windowLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "solar_yield",
			Name:      "window_days",
			Help:      "Number of days in the last window.",
		}),
	}
	reg.MustRegister(c.fetches, c.cache, c.overlaps, c.gaps, c.totalKWh, c.windowLen)
	return c
}

func (c *Collector) ObserveFetch(category solar.Category, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, solar.ErrTransport):
		outcome = "transport_error"
	default:
		outcome = "error"
	}
	c.fetches.WithLabelValues(string(category), outcome).Inc()
}

func (c *Collector) ObserveCache(outcome string) {
	c.cache.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveAggregate(res solar.AggregateResult) {
	c.overlaps.Add(float64(res.Diagnostics.Overlaps))
	c.gaps.Set(float64(len(res.Diagnostics.Gaps)))
	c.totalKWh.Set(res.CalibratedTotal())
	c.windowLen.Set(float64(res.Count()))
}
