package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// StockExportHeader is the header row of the stock request export.
var StockExportHeader = []string{
	"Inventory Item", "Destination Location", "Controlled Drug Schedule", "Request Number",
	"Submitting User", "Quantity", "Value", "Date",
}

// StockRow is one line of a stock request export fixture. An empty User is
// written as a blank cell.
type StockRow struct {
	Item     string
	Ward     string
	Schedule string
	Request  string
	User     string
	Quantity float64
	Value    any
	Date     time.Time
}

// SampleStockRows spans two months and three ISO weeks across three wards.
func SampleStockRows() []StockRow {
	d := func(m time.Month, day int) time.Time { return time.Date(2024, m, day, 10, 0, 0, 0, time.UTC) }
	return []StockRow{
		{"Paracetamol 500mg (PARA01)", "Ward 1", "Non-controlled Drugs", "R1", "alice", 10, 5.0, d(time.August, 30)},
		{"Morphine 10mg/ml [MOR10]", "ICU", "Controlled Drugs", "R2", "bob", 2, 40.0, d(time.September, 2)},
		{"Paracetamol 500mg", " Ward 1 ", "Non-controlled Drugs", "R3", "alice", 20, 10.0, d(time.September, 2)},
		{"Saline 0.9%", "Ward 2", "N/A", "R3", "alice", 5, 2.5, d(time.September, 3)},
		{"Morphine 10mg/ml", "Ward 2", "Controlled drugs", "R4", "carol", 1, 20.0, d(time.September, 4)},
		{"Gauze  swab", "ICU", "Non-controlled Drugs", "R5", "", 50, "n/a", d(time.September, 9)},
		{"Paracetamol 500mg {PARA01}", "ICU", "Non-controlled Drugs", "R6", "bob", 30, 15.0, d(time.September, 10)},
	}
}

// WriteStockWorkbook saves rows as an .xlsx export in dir and returns its path.
func WriteStockWorkbook(t *testing.T, dir string, rows []StockRow) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(StockExportHeader))
	for i, h := range StockExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}

	for i, r := range rows {
		var user any
		if r.User != "" {
			user = r.User
		}
		values := []any{r.Item, r.Ward, r.Schedule, r.Request, user, r.Quantity, r.Value, r.Date}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("failed to write row %d: %v", i+2, err)
		}
	}

	path := filepath.Join(dir, "stock_requests.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}
