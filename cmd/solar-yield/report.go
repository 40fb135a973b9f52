package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/solar-yield-forecast/internal/report"
	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

const (
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 5 * time.Second

	// commandTimeout bounds one CLI run including all Solcast requests.
	commandTimeout = 2 * time.Minute
)

func newReportCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print daily yield for the window around today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, f)
		},
	}
}

func runReport(cmd *cobra.Command, f *flags) error {
	a, err := newApp(f)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	res, err := a.service.Yield(ctx, a.cfg.Days, "")
	if err != nil && !errors.Is(err, solar.ErrNoData) {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Text(res, report.TextOptions{
		Today:     a.service.Today(),
		Highlight: isTerminal(cmd),
	}))
	return nil
}

func newChartCmd(f *flags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Write an HTML bar chart of daily yield",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(f)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			res, err := a.service.Yield(ctx, a.cfg.Days, "")
			if errors.Is(err, solar.ErrNoData) {
				fmt.Fprintln(cmd.OutOrStdout(), "** no daily data available")
				return nil
			}
			if err != nil {
				return err
			}

			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.Chart(file, res, report.ChartOptions{Today: a.service.Today()}); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "solcast.html", "output HTML file")
	return cmd
}

func newRefreshCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch data according to the reload mode and update the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(f)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			res, err := a.service.Refresh(ctx, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "data for %s from %d sites (run %s)\n", res.Date, res.Sites, res.RunID)
			return nil
		},
	}
}

// isTerminal reports whether the command writes to a character device.
func isTerminal(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
