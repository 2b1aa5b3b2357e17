package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPeriodsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List the months, weeks and destinations in the source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := opts.service().Options(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if o.MinDate != "" {
				fmt.Fprintf(tw, "Dates\t%s to %s\n", o.MinDate, o.MaxDate)
			}

			fmt.Fprintln(tw, "\nMonths")
			for _, m := range o.Months {
				fmt.Fprintf(tw, "%s\t%s\n", m.Key, m.Label)
			}

			fmt.Fprintln(tw, "\nWeeks")
			for _, w := range o.Weeks {
				fmt.Fprintf(tw, "%s\t%s\n", w.Start, w.Label)
			}

			fmt.Fprintln(tw, "\nDestinations")
			for _, d := range o.Destinations {
				fmt.Fprintln(tw, d)
			}
			return tw.Flush()
		},
	}
}
