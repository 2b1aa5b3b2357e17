package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pharmstock/internal/exporter"
	"pharmstock/internal/services"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var q services.DashboardQuery

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print KPIs and ranked tables for a period",
		Example: `  stockreport summary -f requests.xlsx --month 2024-09
  stockreport summary -f requests.xlsx --mode weekly --week 2024-09-02 --ward "Ward 1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.service().Dashboard(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printDashboard(cmd.OutOrStdout(), d)
		},
	}
	queryFlags(cmd, &q)
	return cmd
}

func printDashboard(out io.Writer, d *services.Dashboard) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Stock requests: %s\n", d.Selection.Period)
	if filters := describeFilters(d.Selection); filters != "" {
		fmt.Fprintf(tw, "Filters: %s\n", filters)
	}
	fmt.Fprintln(tw)

	if d.Status == services.StatusNoData {
		fmt.Fprintln(tw, d.Message)
		return tw.Flush()
	}

	fmt.Fprintf(tw, "Requests\t%s\n", exporter.Number(float64(d.Summary.Requests)))
	fmt.Fprintf(tw, "Line items\t%s\n", exporter.Number(float64(d.Summary.LineItems)))
	fmt.Fprintf(tw, "Total value\t%s\n", exporter.Currency(d.Summary.TotalValue))
	fmt.Fprintf(tw, "Wards\t%d\n", d.Summary.Wards)

	section(tw, "Wards by requests", "Destination", "Requests")
	for _, r := range d.WardsByRequests {
		fmt.Fprintf(tw, "%s\t%d\n", r.Destination, r.Requests)
	}

	section(tw, "Wards by line items", "Destination", "Line items")
	for _, r := range d.WardsByLines {
		fmt.Fprintf(tw, "%s\t%d\n", r.Destination, r.Lines)
	}

	section(tw, "Top items by quantity", "Item", "Quantity", "Value", "Requests")
	for _, r := range d.TopItems {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Item, exporter.Number(r.Quantity), exporter.Currency(r.Value), r.Requests)
	}

	section(tw, "Top items by value", "Item", "Value")
	for _, r := range d.TopItemValues {
		fmt.Fprintf(tw, "%s\t%s\n", r.Item, exporter.Currency(r.Value))
	}

	section(tw, "Controlled drug schedules", "Schedule", "Value", "Share")
	for _, r := range d.ScheduleShares {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", r.Schedule, exporter.Currency(r.Value), r.Share*100)
	}

	section(tw, "Schedule value by ward", "Schedule / Destination", "Value")
	for _, b := range d.ScheduleWards {
		fmt.Fprintf(tw, "%s\t%s\n", b.Schedule, exporter.Currency(b.Value))
		for _, w := range b.Wards {
			fmt.Fprintf(tw, "  %s\t%s\n", w.Destination, exporter.Currency(w.Value))
		}
	}

	section(tw, "Top users", "#", "User", "Requests", "Lines", "Value")
	for _, u := range d.TopUsers {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", u.Rank, u.User, u.Requests, u.Lines, exporter.Currency(u.Value))
	}

	fmt.Fprintf(tw, "\nSource: %s (%d rows, %s)\n", d.Footer.Source, d.Footer.Rows, d.Footer.DateRange)
	return tw.Flush()
}

func section(w io.Writer, title string, headers ...string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Join(headers, "\t"))
}

func describeFilters(sel services.SelectionView) string {
	var parts []string
	if len(sel.Wards) > 0 {
		parts = append(parts, "wards "+strings.Join(sel.Wards, ", "))
	}
	if len(sel.Schedules) > 0 {
		labels := make([]string, len(sel.Schedules))
		for i, s := range sel.Schedules {
			labels[i] = string(s)
		}
		parts = append(parts, "schedules "+strings.Join(labels, ", "))
	}
	return strings.Join(parts, "; ")
}
