// Package exporter writes dashboard result tables as CSV or XLSX downloads.
//
// Every result is first flattened into a Sheet (a name, a header row and rows
// of cells). CSVWriter streams one Sheet with an optional UTF-8 BOM so Excel
// recognises the encoding; WriteWorkbook renders several Sheets into a single
// workbook with excelize.
//
// Example usage:
//
//	sheet := exporter.Sheet{
//	    Name:    "Items",
//	    Headers: []string{"Item", "Quantity"},
//	    Rows:    [][]any{{"Paracetamol 500mg", 120.0}},
//	}
//	err := exporter.NewCSVWriter(logger).Write(w, sheet, exporter.WriteOptions{BOMPrefix: true})
package exporter
