package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pharmstock/internal/config"
	"pharmstock/internal/dataprocessing"
	"pharmstock/internal/infrastructure"
	"pharmstock/internal/services"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	file     string
	sheet    string
	logLevel string

	logger *slog.Logger
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "stockreport",
		Short: "Pharmacy stock request reports from the command line",
		Long: `stockreport reads a pharmacy stock request export (.xlsx or .csv) and
prints the same figures as the dashboard: headline KPIs, ward and item
rankings, controlled drug breakdowns and per-user activity.

The source defaults to ` + config.EnvPrefix + `_DATASET_PATH when --file is not given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				opts.file = os.Getenv(config.EnvPrefix + "_DATASET_PATH")
			}
			if opts.file == "" {
				return fmt.Errorf("no source file: pass --file or set %s_DATASET_PATH", config.EnvPrefix)
			}
			opts.logger = infrastructure.NewLogger(stderr, opts.logLevel)
			// One trace ID per invocation ties the run's log lines together.
			cmd.SetContext(infrastructure.EnsureTraceID(cmd.Context()))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "stock request export (.xlsx or .csv)")
	root.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "worksheet name (default: first sheet)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newSummaryCmd(opts),
		newExportCmd(opts),
		newPeriodsCmd(opts),
	)
	return root
}

// service builds a dashboard service over the selected source.
func (o *rootOptions) service() *services.DashboardService {
	loader := dataprocessing.NewLoader(o.logger, dataprocessing.LoaderOptions{Sheet: o.sheet})
	repo := dataprocessing.NewRepository(loader, o.logger)
	return services.NewDashboardService(repo, o.file, o.logger)
}

// queryFlags binds the selection flags shared by summary and export.
func queryFlags(cmd *cobra.Command, q *services.DashboardQuery) {
	f := cmd.Flags()
	f.StringVar(&q.Mode, "mode", "", "daily, weekly, monthly or range (default monthly)")
	f.StringVar(&q.Date, "date", "", "day for daily mode (YYYY-MM-DD)")
	f.StringVar(&q.Week, "week", "", "any day in the ISO week for weekly mode (YYYY-MM-DD)")
	f.StringVar(&q.Month, "month", "", "month for monthly mode (YYYY-MM)")
	f.StringVar(&q.Start, "start", "", "first day for range mode (YYYY-MM-DD)")
	f.StringVar(&q.End, "end", "", "last day for range mode (YYYY-MM-DD)")
	f.StringArrayVar(&q.Wards, "ward", nil, "restrict to a destination (repeatable)")
	f.StringArrayVar(&q.Schedules, "schedule", nil, "restrict to a controlled drug schedule label (repeatable)")
	f.IntVar(&q.TopN, "top", 0, "rows per ranked table, 5 to 50 (default 20)")
}
