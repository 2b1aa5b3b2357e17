package dataprocessing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pharmstock/pkg/contracts/domain"
)

var exportHeader = []any{
	"Inventory Item", " Destination Location ", "Controlled Drug Schedule", "Request Number",
	"Submitting User", "Quantity", "Value", "Date",
}

// writeWorkbook saves rows below the export header to a workbook in dir.
func writeWorkbook(t *testing.T, dir string, header []any, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Stock Requests"
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	all := append([][]any{header}, rows...)
	for i, row := range all {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	path := filepath.Join(dir, "stock_requests.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func day(d int) time.Time {
	return time.Date(2024, time.September, d, 9, 30, 0, 0, time.UTC)
}

func sampleRows() [][]any {
	return [][]any{
		{"Paracetamol 500mg (ABC123)", "Ward 1", "Non-controlled Drugs", "R1", "alice", 10, 4.5, day(2)},
		{"Morphine 10mg [MOR01]", " Ward 2 ", "Controlled Drugs", "R2", nil, 2, "n/a", day(3)},
		{"Paracetamol  500mg", "Ward 1", "", "R1", "alice", 5, 2.25, day(3)},
		{"Saline 0.9%", "ICU", "Controlled drugs", "R3", "bob", 1, -1.5, day(10)},
	}
}

func TestReadSourceWorkbook(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), exportHeader, sampleRows())

	raws, err := ReadSource(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, raws, 4)

	assert.Equal(t, 2, raws[0].Row)
	assert.Equal(t, "Paracetamol 500mg (ABC123)", raws[0].InventoryItem.Text)
	assert.Equal(t, "45537", raws[0].Date.Text[:5])
	assert.True(t, raws[0].FromWorkbook)
	assert.False(t, raws[1].SubmittingUser.Valid)
	assert.Equal(t, " Ward 2 ", raws[1].Destination.Text)
}

func TestLoadWorkbook(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), exportHeader, sampleRows())

	table, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	recs := table.Records()
	assert.Equal(t, []string{"R1", "R2", "R1", "R3"},
		[]string{recs[0].RequestNumber, recs[1].RequestNumber, recs[2].RequestNumber, recs[3].RequestNumber})

	assert.Equal(t, "Paracetamol 500mg", recs[0].ItemClean)
	assert.Equal(t, "Paracetamol 500mg", recs[2].ItemClean)
	assert.Equal(t, "Ward 2", recs[1].Destination)
	assert.Equal(t, domain.UnattributedUser, recs[1].SubmittingUser)
	assert.Equal(t, 0.0, recs[1].Value)
	assert.Equal(t, -1.5, recs[3].Value)
	assert.Equal(t, domain.ScheduleUnknown, recs[2].Schedule)
	assert.Equal(t, domain.ScheduleControlled, recs[3].Schedule)

	assert.Equal(t, domain.CivilDate(day(2)), table.MinDate())
	assert.Equal(t, domain.CivilDate(day(10)), table.MaxDate())
	assert.Equal(t, path, table.Source())
}

func TestLoadPreservesRowCount(t *testing.T) {
	values := []any{"12", "abc", "", nil, "1e3", "-7"}
	var rows [][]any
	for i := 0; i < 60; i++ {
		rows = append(rows, []any{"Item", "Ward", "N/A", "R", nil, i, values[i%len(values)], day(1 + i%28)})
	}
	path := writeWorkbook(t, t.TempDir(), exportHeader, rows)

	table, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, len(rows), table.Len())

	i := 0
	for rec := range table.All() {
		assert.Equal(t, float64(i), rec.Quantity, "row order changed at %d", i)
		assert.True(t, rec.Schedule.Valid())
		i++
	}
}

func TestLoadSkipsBlankRows(t *testing.T) {
	rows := sampleRows()
	rows = append(rows[:2], append([][]any{{"", " ", nil}}, rows[2:]...)...)
	path := writeWorkbook(t, t.TempDir(), exportHeader, rows)

	table, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())

	raws, err := ReadSource(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	rowNumbers := make([]int, len(raws))
	for i, raw := range raws {
		rowNumbers[i] = raw.Row
	}
	assert.Equal(t, []int{2, 3, 5, 6}, rowNumbers)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	content := "\xef\xbb\xbfInventory Item,Destination Location,Controlled Drug Schedule,Request Number,Submitting User,Quantity,Value,Date\n" +
		"Paracetamol 500mg (ABC123),Ward 1,Non-controlled Drugs,R1,alice,10,\"1,204.50\",02/09/2024\n" +
		"Codeine 30mg,Ward 2,Controlled Drugs,R2,,3,x,2024-09-03\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Load(context.Background(), path)
	require.NoError(t, err)
	recs := table.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 1204.5, recs[0].Value)
	assert.Equal(t, domain.UnattributedUser, recs[1].SubmittingUser)
	assert.Equal(t, 0.0, recs[1].Value)
	assert.Equal(t, time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC), recs[0].Date)
}

func TestLoadCSVWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.csv")
	content := "Inventory Item,Destination Location,Controlled Drug Schedule,Request Number,Submitting User,Quantity,Value,Date\r\n" +
		"Caf\xe9 sponge \xa3 pack (CSP01),Ward 1,Non-controlled Drugs,R1,alice,1,2.5,02/09/2024\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Load(context.Background(), path)
	require.NoError(t, err)
	recs := table.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "Café sponge £ pack", recs[0].ItemClean)
	assert.Equal(t, "Ward 1", recs[0].Destination)
}

func TestLoadCSVDates(t *testing.T) {
	header := "Inventory Item,Destination Location,Controlled Drug Schedule,Request Number,Submitting User,Quantity,Value,Date\n"
	write := func(t *testing.T, date string) string {
		path := filepath.Join(t.TempDir(), "export.csv")
		row := "Item,Ward 1,Controlled Drugs,R1,alice,1,2.5," + date + "\n"
		require.NoError(t, os.WriteFile(path, []byte(header+row), 0o644))
		return path
	}

	t.Run("compact date", func(t *testing.T) {
		table, err := Load(context.Background(), write(t, "20240902"))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC), table.Records()[0].Date)
	})

	for _, date := range []string{"2024", "45537"} {
		t.Run("number "+date, func(t *testing.T) {
			_, err := Load(context.Background(), write(t, date))
			require.ErrorIs(t, err, ErrMalformedSource)
			var se *SourceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, 2, se.Row)
			assert.Equal(t, ColDate, se.Column)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(dir, "nope.xlsx"))
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(context.Background(), dir)
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("missing column", func(t *testing.T) {
		sub := t.TempDir()
		header := []any{"Inventory Item", "Destination Location", "Request Number", "Submitting User", "Quantity", "Value", "Date"}
		path := writeWorkbook(t, sub, header, nil)

		_, err := Load(context.Background(), path)
		require.ErrorIs(t, err, ErrMalformedSource)
		var se *SourceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, ColSchedule, se.Column)
		assert.Equal(t, path, se.Path)
	})

	t.Run("bad date", func(t *testing.T) {
		sub := t.TempDir()
		rows := sampleRows()
		rows[2][7] = "sometime"
		path := writeWorkbook(t, sub, exportHeader, rows)

		_, err := Load(context.Background(), path)
		require.ErrorIs(t, err, ErrMalformedSource)
		var se *SourceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 4, se.Row)
	})

	t.Run("not a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
		_, err := Load(context.Background(), path)
		assert.ErrorIs(t, err, ErrMalformedSource)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := Load(context.Background(), path)
		assert.ErrorIs(t, err, ErrMalformedSource)
	})
}

func TestTableIsImmutable(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), exportHeader, sampleRows())
	table, err := Load(context.Background(), path)
	require.NoError(t, err)

	recs := table.Records()
	recs[0].Destination = "Tampered"
	assert.Equal(t, "Ward 1", table.Records()[0].Destination)
}
