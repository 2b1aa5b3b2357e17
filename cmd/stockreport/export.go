package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pharmstock/internal/exporter"
	"pharmstock/internal/services"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		q     services.DashboardQuery
		query string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one table as CSV or every table as an Excel workbook",
		Long: `export writes the selected period to disk. The format follows the --out
extension: .csv writes the single table named by --query, .xlsx writes a
summary sheet followed by one sheet per table.

Tables: ` + queryList(),
		Example: `  stockreport export -f requests.xlsx --month 2024-09 --query items --out items.csv
  stockreport export -f requests.xlsx --month 2024-09 --out dashboard.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := opts.service()

			switch strings.ToLower(filepath.Ext(out)) {
			case ".csv":
				name, err := services.ParseQueryName(query)
				if err != nil {
					return fmt.Errorf("--query: %w (one of %s)", err, queryList())
				}
				table, err := svc.Table(cmd.Context(), name, q)
				if err != nil {
					return err
				}
				if err := exporter.NewCSVWriter(opts.logger).WriteFile(out, table.Sheet(), exporter.WriteOptions{BOMPrefix: true}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows of %s to %s\n", table.Total, name, out)

			case ".xlsx":
				sheets, err := svc.Sheets(cmd.Context(), q)
				if err != nil {
					return err
				}
				if err := exporter.SaveWorkbook(out, sheets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d sheets to %s\n", len(sheets), out)

			default:
				return fmt.Errorf("--out must end in .csv or .xlsx, got %q", out)
			}
			return nil
		},
	}
	queryFlags(cmd, &q)
	cmd.Flags().StringVar(&query, "query", "", "table to write when --out is a .csv file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func queryList() string {
	names := services.QueryNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
