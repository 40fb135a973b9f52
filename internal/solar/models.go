package solar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Category names one of the two Solcast record streams.
type Category string

const (
	CategoryForecasts        Category = "forecasts"
	CategoryEstimatedActuals Category = "estimated_actuals"
)

// Categories lists the record streams in processing order. The order matters:
// a (site, slot) pair reported by both streams counts once, for the first.
var Categories = []Category{CategoryForecasts, CategoryEstimatedActuals}

// ReloadMode selects how a persisted snapshot is reused.
type ReloadMode string

const (
	// ReloadNever reuses any persisted snapshot and fetches only when none exists.
	ReloadNever ReloadMode = "never"
	// ReloadForce discards the persisted snapshot before fetching.
	ReloadForce ReloadMode = "force"
	// ReloadIfStale reuses the persisted snapshot only when it was fetched today.
	ReloadIfStale ReloadMode = "if-stale"
)

// ParseReloadMode accepts the mode names and the numeric codes 0, 1 and 2.
// An empty string selects ReloadIfStale.
func ParseReloadMode(s string) (ReloadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2", string(ReloadIfStale):
		return ReloadIfStale, nil
	case "0", string(ReloadNever):
		return ReloadNever, nil
	case "1", string(ReloadForce):
		return ReloadForce, nil
	default:
		return "", fmt.Errorf("invalid reload mode %q", s)
	}
}

// RawRecord is one half-hour sample for one site. Fields other than
// period_end and pv_estimate are kept as received so the cache file
// round-trips without loss.
type RawRecord struct {
	PeriodEnd  string
	PVEstimate *float64

	raw map[string]json.RawMessage
}

// Estimate returns pv_estimate in kW, treating null as zero.
func (r RawRecord) Estimate() float64 {
	if r.PVEstimate == nil {
		return 0
	}
	return *r.PVEstimate
}

// Date returns the YYYY-MM-DD part of period_end.
func (r RawRecord) Date() string {
	if len(r.PeriodEnd) < 10 {
		return ""
	}
	return r.PeriodEnd[:10]
}

// TimeOfDay returns the HH:MM part of period_end.
func (r RawRecord) TimeOfDay() string {
	if len(r.PeriodEnd) < 16 {
		return ""
	}
	return r.PeriodEnd[11:16]
}

func (r *RawRecord) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = RawRecord{raw: fields}
	if v, ok := fields["period_end"]; ok {
		if err := json.Unmarshal(v, &r.PeriodEnd); err != nil {
			return fmt.Errorf("period_end: %w", err)
		}
	}
	if v, ok := fields["pv_estimate"]; ok {
		if err := json.Unmarshal(v, &r.PVEstimate); err != nil {
			return fmt.Errorf("pv_estimate: %w", err)
		}
	}
	return nil
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.raw)+2)
	for k, v := range r.raw {
		fields[k] = v
	}

	periodEnd, err := json.Marshal(r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if r.PeriodEnd != "" || fields["period_end"] != nil {
		keepOrReplace(fields, "period_end", periodEnd)
	}

	estimate, err := json.Marshal(r.PVEstimate)
	if err != nil {
		return nil, err
	}
	keepOrReplace(fields, "pv_estimate", estimate)

	// map keys are emitted sorted
	return json.Marshal(fields)
}

// keepOrReplace leaves the received bytes in place when they still decode
// to the same value, so 2.0 stays 2.0 instead of becoming 2.
func keepOrReplace(fields map[string]json.RawMessage, key string, encoded []byte) {
	if prev, ok := fields[key]; ok {
		var a, b any
		if json.Unmarshal(prev, &a) == nil && json.Unmarshal(encoded, &b) == nil && equalJSON(a, b) {
			return
		}
	}
	fields[key] = encoded
}

func equalJSON(a, b any) bool {
	x, err1 := json.Marshal(a)
	y, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(x, y)
}

// SiteCategoryData maps a rooftop site id to its records for one category.
// A nil slice means the provider returned nothing for that site.
type SiteCategoryData map[string][]RawRecord

// CacheSnapshot is the persisted result of one fetch. Fields are declared in
// key order so the encoded object has sorted keys.
type CacheSnapshot struct {
	Date             string           `json:"date"`
	EstimatedActuals SiteCategoryData `json:"estimated_actuals"`
	Forecasts        SiteCategoryData `json:"forecasts"`
}

// Empty reports whether the snapshot holds no site data at all.
func (s CacheSnapshot) Empty() bool {
	return len(s.Forecasts) == 0 && len(s.EstimatedActuals) == 0
}

// DailyBucket accumulates one calendar date while aggregating.
type DailyBucket struct {
	Forecast bool
	KWh      float64

	// site -> set of HH:MM slots already counted
	seen map[string]map[string]struct{}
}

func newDailyBucket(forecast bool) *DailyBucket {
	return &DailyBucket{Forecast: forecast, seen: make(map[string]map[string]struct{})}
}

// add counts the sample unless the site already reported this slot.
func (b *DailyBucket) add(site, slot string, kw float64) bool {
	slots, ok := b.seen[site]
	if !ok {
		slots = make(map[string]struct{})
		b.seen[site] = slots
	}
	if _, dup := slots[slot]; dup {
		return false
	}
	slots[slot] = struct{}{}
	// half-hour average kW / 2 = kWh
	b.KWh += kw / 2
	return true
}

// SlotCount returns how many distinct half-hour slots site contributed.
func (b *DailyBucket) SlotCount(site string) int {
	return len(b.seen[site])
}

// DailyYield is one day of the selected window.
type DailyYield struct {
	Date     string         `json:"date"`
	Weekday  string         `json:"weekday"`
	Forecast bool           `json:"forecast"`
	KWh      float64        `json:"kwh"`
	Slots    map[string]int `json:"slots"`
}

// Tag returns the label used in reports.
func (d DailyYield) Tag() string {
	if d.Forecast {
		return "Forecast"
	}
	return "Estimated"
}

// SlotGap flags a site that did not report all 48 slots for a day.
type SlotGap struct {
	Date  string `json:"date"`
	Site  string `json:"site"`
	Slots int    `json:"slots"`
}

// Diagnostics collects data quality findings. None of them stop aggregation.
type Diagnostics struct {
	Overlaps  int       `json:"overlaps"`
	Malformed int       `json:"malformed"`
	Gaps      []SlotGap `json:"gaps,omitempty"`
}

// AggregateResult is the trimmed daily window. KWh figures are uncalibrated;
// use the Calibrated helpers for presentation.
type AggregateResult struct {
	Days        []DailyYield `json:"days"`
	Total       float64      `json:"total_kwh"`
	Average     float64      `json:"average_kwh"`
	Calibration float64      `json:"calibration"`
	Sites       []string     `json:"sites"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// Count returns the number of days in the window.
func (r AggregateResult) Count() int {
	return len(r.Days)
}

func (r AggregateResult) calibration() float64 {
	if r.Calibration == 0 {
		return 1
	}
	return r.Calibration
}

// CalibratedKWh returns day i scaled by the calibration factor.
func (r AggregateResult) CalibratedKWh(i int) float64 {
	return r.Days[i].KWh * r.calibration()
}

func (r AggregateResult) CalibratedTotal() float64 {
	return r.Total * r.calibration()
}

// CalibratedAverage returns false when the window is empty.
func (r AggregateResult) CalibratedAverage() (float64, bool) {
	if len(r.Days) == 0 {
		return 0, false
	}
	return r.Average * r.calibration(), true
}
