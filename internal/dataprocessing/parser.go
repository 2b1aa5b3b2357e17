package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"pharmstock/pkg/contracts/domain"
)

// Column headers of the stock request export.
const (
	ColInventoryItem  = "Inventory Item"
	ColDestination    = "Destination Location"
	ColSchedule       = "Controlled Drug Schedule"
	ColRequestNumber  = "Request Number"
	ColSubmittingUser = "Submitting User"
	ColQuantity       = "Quantity"
	ColValue          = "Value"
	ColDate           = "Date"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{
	ColInventoryItem,
	ColDestination,
	ColSchedule,
	ColRequestNumber,
	ColSubmittingUser,
	ColQuantity,
	ColValue,
	ColDate,
}

const ctxCheckInterval = 1024

// ReadOptions controls how a source file is read.
type ReadOptions struct {
	// Sheet selects a worksheet by name; the first sheet is used when empty.
	Sheet string
}

// ReadSource reads every non-blank data row of an .xlsx, .xlsm or .csv export.
// Rows whose cells are all empty are skipped, so they neither become records
// nor count towards the loaded row total; Row still carries the source line.
func ReadSource(ctx context.Context, path string, opts ReadOptions) ([]domain.RawRecord, error) {
	var (
		rows     [][]string
		workbook bool
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path, opts.Sheet)
		workbook = true
	case ".csv":
		rows, err = readCSV(path)
	default:
		err = malformed(0, "", fmt.Errorf("%w: %q", errUnsupportedFormat, ext))
	}
	if err != nil {
		return nil, err
	}
	return buildRecords(ctx, rows, workbook)
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, malformed(0, "", fmt.Errorf("failed to open workbook: %w", err))
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, malformed(0, "", errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, malformed(0, "", fmt.Errorf("failed to read sheet %q: %w", sheet, err))
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Kind: ErrSourceNotFound, Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	// Exports saved from older Excel builds arrive as Windows-1252 (the £ sign).
	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	r := csv.NewReader(src)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, malformed(pe.StartLine, "", err)
			}
			return nil, malformed(0, "", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// buildRecords maps the header row and converts the remaining rows to RawRecords.
func buildRecords(ctx context.Context, rows [][]string, workbook bool) ([]domain.RawRecord, error) {
	if len(rows) == 0 {
		return nil, malformed(0, "", errors.New("source is empty"))
	}

	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if _, dup := columns[h]; !dup {
			columns[h] = i
		}
	}
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, malformed(1, name, errMissingColumn)
		}
	}

	records := make([]domain.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isBlank(row) {
			continue
		}
		cell := func(name string) domain.Cell {
			idx := columns[name]
			if idx >= len(row) {
				return domain.Cell{}
			}
			return domain.TextCell(row[idx])
		}
		records = append(records, domain.RawRecord{
			Row:            i + 2,
			InventoryItem:  cell(ColInventoryItem),
			Destination:    cell(ColDestination),
			Schedule:       cell(ColSchedule),
			RequestNumber:  cell(ColRequestNumber),
			SubmittingUser: cell(ColSubmittingUser),
			Quantity:       cell(ColQuantity),
			Value:          cell(ColValue),
			Date:           cell(ColDate),
			FromWorkbook:   workbook,
		})
	}
	return records, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
