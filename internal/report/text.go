package report

import (
	"fmt"
	"strings"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

const (
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// TextOptions controls Text output.
type TextOptions struct {
	// Today is the YYYY-MM-DD date to mark in the listing.
	Today string
	// Highlight wraps today's line in ANSI bold.
	Highlight bool
}

// Text renders one line per day with calibrated yields.
func Text(res solar.AggregateResult, opts TextOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Solcast yield for %d days", res.Count())
	if res.Calibration != 0 && res.Calibration != 1.0 {
		fmt.Fprintf(&b, ", calibration = %g", res.Calibration)
	}
	b.WriteString(" (E = estimated, F = forecasts):\n\n")

	if res.Count() == 0 {
		b.WriteString("    no daily data available\n")
		return b.String()
	}

	for i, day := range res.Days {
		today := day.Date == opts.Today
		switch {
		case today && opts.Highlight:
			b.WriteString(ansiBold + "--> ")
		case today:
			b.WriteString("--> ")
		default:
			b.WriteString("    ")
		}

		fmt.Fprintf(&b, "%s %s %s: %5.2f kwh", day.Date, day.Weekday, day.Tag(), res.CalibratedKWh(i))

		switch {
		case today && opts.Highlight:
			b.WriteString(" <--" + ansiReset + "\n")
		case today:
			b.WriteString(" <--\n")
		default:
			b.WriteString("\n")
		}
	}

	avg, _ := res.CalibratedAverage()
	fmt.Fprintf(&b, "\n    Total: %.2f kwh, average %.2f kwh / day\n", res.CalibratedTotal(), avg)
	return b.String()
}
