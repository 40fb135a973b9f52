package solar

import (
	"fmt"
	"sort"
	"time"
)

// SlotsPerDay is the number of half-hour slots in a fully covered day.
const SlotsPerDay = 48

// Aggregate sums half-hour samples into daily kWh totals and selects the
// reporting window.
//
// Each (date, site, HH:MM) slot is counted once across both categories; the
// first category in Categories order wins and the other sample is dropped.
// A date keeps the forecast flag of the category it was first seen in.
// The first and last dates are partial days and never reported. The
// remaining dates are trimmed symmetrically until at most 2*days are left.
//
// ErrNoData is returned, together with the diagnostics gathered so far, when
// no day survives the window selection.
func Aggregate(forecasts, estimatedActuals SiteCategoryData, days int, cal float64) (AggregateResult, error) {
	if days <= 0 {
		return AggregateResult{}, fmt.Errorf("days must be greater than zero")
	}
	if cal == 0 {
		cal = 1
	}

	var (
		daily = make(map[string]*DailyBucket)
		diag  Diagnostics
		sites = make(map[string]struct{})
	)

	input := map[Category]SiteCategoryData{
		CategoryForecasts:        forecasts,
		CategoryEstimatedActuals: estimatedActuals,
	}

	for _, cat := range Categories {
		data := input[cat]
		for _, site := range sortedSites(data) {
			records := data[site]
			if records == nil {
				continue
			}
			sites[site] = struct{}{}

			for _, rec := range records {
				date, slot := rec.Date(), rec.TimeOfDay()
				if slot == "" {
					diag.Malformed++
					continue
				}

				bucket, ok := daily[date]
				if !ok {
					bucket = newDailyBucket(cat == CategoryForecasts)
					daily[date] = bucket
				}
				if !bucket.add(site, slot, rec.Estimate()) {
					diag.Overlaps++
				}
			}
		}
	}

	keys := make([]string, 0, len(daily))
	for k := range daily {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keys = selectWindow(keys, days)

	siteList := make([]string, 0, len(sites))
	for s := range sites {
		siteList = append(siteList, s)
	}
	sort.Strings(siteList)

	result := AggregateResult{
		Days:        make([]DailyYield, 0, len(keys)),
		Calibration: cal,
		Sites:       siteList,
	}

	for _, k := range keys {
		bucket := daily[k]
		day := DailyYield{
			Date:     k,
			Weekday:  weekday(k),
			Forecast: bucket.Forecast,
			KWh:      bucket.KWh,
			Slots:    make(map[string]int, len(siteList)),
		}
		for _, site := range siteList {
			n := bucket.SlotCount(site)
			day.Slots[site] = n
			if n != SlotsPerDay {
				diag.Gaps = append(diag.Gaps, SlotGap{Date: k, Site: site, Slots: n})
			}
		}
		result.Days = append(result.Days, day)
		result.Total += day.KWh
	}
	result.Diagnostics = diag

	if len(result.Days) == 0 {
		return result, ErrNoData
	}
	result.Average = result.Total / float64(len(result.Days))

	return result, nil
}

// selectWindow drops the partial first and last dates, then trims one date
// from each end while more than 2*days remain.
func selectWindow(sorted []string, days int) []string {
	if len(sorted) <= 2 {
		return nil
	}
	keys := sorted[1 : len(sorted)-1]
	for len(keys) > 2*days {
		keys = keys[1 : len(keys)-1]
	}
	return keys
}

func sortedSites(data SiteCategoryData) []string {
	out := make([]string, 0, len(data))
	for site := range data {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}

// weekday returns the three letter weekday of a YYYY-MM-DD date.
func weekday(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()[:3]
}
