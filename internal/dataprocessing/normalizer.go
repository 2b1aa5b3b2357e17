package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pharmstock/pkg/contracts/domain"
)

var (
	// One trailing catalogue code such as " (ABC123)", "[PARA01]" or "{ X1Y2 }".
	catalogueSuffix = regexp.MustCompile(`\s*(?:\(\s*[A-Z0-9]{4,6}\s*\)|\[\s*[A-Z0-9]{4,6}\s*\]|\{\s*[A-Z0-9]{4,6}\s*\})\s*$`)
	repeatedSpaces  = regexp.MustCompile(` {2,}`)
)

// Excel serials for 1900-01-01 and 9999-12-31.
const (
	minDateSerial = 1
	maxDateSerial = 2958465
)

// scheduleLabels is the exact-match lookup for the export's schedule column.
var scheduleLabels = map[string]domain.DrugSchedule{
	"Non-controlled Drugs": domain.ScheduleNonControlled,
	"Controlled Drugs":     domain.ScheduleControlled,
	"Controlled drugs":     domain.ScheduleControlled,
}

// DefaultDateLayouts are tried in order. Workbook cells are first tried as
// Excel serials. Slash and dash forms are day-first, as the export is produced in the UK.
var DefaultDateLayouts = []string{
	time.RFC3339,
	time.DateOnly,
	"20060102",
	time.DateTime,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006",
	"2/1/06",
	"02-01-06",
	"02-Jan-2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Normalizer turns raw export rows into StockRecords. The zero value is ready to use.
type Normalizer struct {
	DateLayouts []string
}

// Normalize applies the cleaning rules to one row. Only an unparseable date is an error.
func (n Normalizer) Normalize(raw domain.RawRecord) (domain.StockRecord, error) {
	date, err := n.parseDate(raw.Date, raw.FromWorkbook)
	if err != nil {
		return domain.StockRecord{}, malformed(raw.Row, ColDate, err)
	}

	return domain.StockRecord{
		ItemClean:      CleanItemName(raw.InventoryItem.Text),
		Destination:    ResolveDestination(raw.Destination),
		Schedule:       ResolveSchedule(raw.Schedule),
		Date:           date,
		SubmittingUser: ResolveUser(raw.SubmittingUser),
		Value:          ResolveValue(raw.Value),
		Quantity:       ResolveQuantity(raw.Quantity),
		RequestNumber:  raw.RequestNumber.Text,
		Week:           domain.WeekOf(date),
		Month:          domain.MonthOf(date),
	}, nil
}

func (n Normalizer) parseDate(c domain.Cell, workbook bool) (time.Time, error) {
	layouts := n.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return parseDate(c, layouts, workbook)
}

// CleanItemName strips one trailing bracketed catalogue code and collapses repeated spaces.
// Only the last code goes: "Foo (ABCD) (EFGH)" becomes "Foo (ABCD)", so cleaning is
// idempotent except for names that end in more than one code.
func CleanItemName(name string) string {
	name = catalogueSuffix.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ResolveDestination trims the ward name. A missing cell yields "".
func ResolveDestination(c domain.Cell) string {
	return strings.TrimSpace(c.Text)
}

// ResolveSchedule maps the raw label; anything unlisted, including a missing cell, is Unknown.
func ResolveSchedule(c domain.Cell) domain.DrugSchedule {
	if !c.Valid {
		return domain.ScheduleUnknown
	}
	if s, ok := scheduleLabels[c.Text]; ok {
		return s
	}
	return domain.ScheduleUnknown
}

// ResolveUser passes the user through or substitutes the unattributed placeholder.
func ResolveUser(c domain.Cell) string {
	if !c.Valid {
		return domain.UnattributedUser
	}
	return c.Text
}

// ResolveValue coerces the value cell to a number, yielding 0 when it is not one.
func ResolveValue(c domain.Cell) float64 {
	return coerceNumber(c)
}

// ResolveQuantity coerces the quantity cell the same way as the value.
func ResolveQuantity(c domain.Cell) float64 {
	return coerceNumber(c)
}

// ParseDate parses a textual date cell, as found in CSV exports, with the default layouts.
func ParseDate(c domain.Cell) (time.Time, error) {
	return parseDate(c, DefaultDateLayouts, false)
}

// ParseWorkbookDate parses a raw workbook date cell: an Excel serial number,
// or text in one of the default layouts.
func ParseWorkbookDate(c domain.Cell) (time.Time, error) {
	return parseDate(c, DefaultDateLayouts, true)
}

func coerceNumber(c domain.Cell) float64 {
	if !c.Valid {
		return 0
	}
	s := strings.ReplaceAll(strings.TrimSpace(c.Text), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseDate(c domain.Cell, layouts []string, workbook bool) (time.Time, error) {
	s := strings.TrimSpace(c.Text)
	if !c.Valid || s == "" {
		return time.Time{}, errMissingDate
	}

	// Workbook cells are read raw, so real date cells arrive as serial numbers.
	var serialErr error
	if serial, err := strconv.ParseFloat(s, 64); err == nil && workbook {
		t, err := serialDate(s, serial)
		if err == nil {
			return t, nil
		}
		serialErr = err
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.CivilDate(t), nil
		}
	}
	if serialErr != nil {
		return time.Time{}, serialErr
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// serialDate converts an Excel serial, rejecting ones outside 1900-01-01 to 9999-12-31.
func serialDate(s string, serial float64) (time.Time, error) {
	if !(serial >= minDateSerial && serial < maxDateSerial+1) {
		return time.Time{}, fmt.Errorf("date serial %q is out of range", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
	}
	return domain.CivilDate(t), nil
}
