package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// ChartOptions controls Chart output.
type ChartOptions struct {
	Today string
}

// emptyBar leaves a category slot blank in the other series.
const emptyBar = "-"

// Chart writes an HTML bar chart of calibrated daily yields. Estimated and
// forecast days are separate series on a shared date axis with a mark line
// at the average. solar.ErrNoData is returned, and nothing written, for an
// empty window.
func Chart(w io.Writer, res solar.AggregateResult, o ChartOptions) error {
	if res.Count() == 0 {
		return solar.ErrNoData
	}

	labels := make([]string, 0, res.Count())
	estimated := make([]opts.BarData, 0, res.Count())
	forecast := make([]opts.BarData, 0, res.Count())

	for i, day := range res.Days {
		labels = append(labels, day.Date+" "+day.Weekday)
		value := round2(res.CalibratedKWh(i))
		if day.Forecast {
			estimated = append(estimated, opts.BarData{Value: emptyBar})
			forecast = append(forecast, opts.BarData{Value: value})
		} else {
			estimated = append(estimated, opts.BarData{Value: value})
			forecast = append(forecast, opts.BarData{Value: emptyBar})
		}
	}

	avg, _ := res.CalibratedAverage()
	title := fmt.Sprintf("Solcast yield on %s for %d days", o.Today, res.Count())
	if res.Calibration != 0 && res.Calibration != 1.0 {
		title += fmt.Sprintf(" (calibration = %g)", res.Calibration)
	}
	title += fmt.Sprintf(". Total yield = %.0f kwh", res.CalibratedTotal())

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Solcast yield",
			Width:     fmt.Sprintf("%dpx", chartWidth(res.Count())),
			Height:    "480px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("average %.1f kwh / day", avg),
		}),
	)

	averageLine := charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
		Name:  fmt.Sprintf("average %.1f kwh / day", avg),
		YAxis: round2(avg),
	})

	bar.SetXAxis(labels).
		AddSeries("estimated", estimated, averageLine).
		AddSeries("forecast", forecast)
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "yield"}))

	return bar.Render(w)
}

// chartWidth scales with the number of days, 12 inches per week at 96 dpi.
func chartWidth(days int) int {
	w := 12 * 96 * days / 7
	if w < 480 {
		w = 480
	}
	return w
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
