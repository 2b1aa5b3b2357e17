package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnattributedUser is the placeholder recorded when a request row has no submitting user.
// Direct transfers in the stock system are exported without one.
const UnattributedUser = "UNATTRIBUTED"

// Cell is a single raw spreadsheet value. Valid is false when the cell was absent or empty.
type Cell struct {
	Text  string
	Valid bool
}

// TextCell builds a Cell from a raw string; empty strings are treated as missing.
func TextCell(s string) Cell {
	return Cell{Text: s, Valid: s != ""}
}

// RawRecord is one row of the stock request export as read from the source.
type RawRecord struct {
	Row            int // 1-based row number in the source, header included
	InventoryItem  Cell
	Destination    Cell
	Schedule       Cell
	RequestNumber  Cell
	SubmittingUser Cell
	Quantity       Cell
	Value          Cell
	Date           Cell

	// FromWorkbook marks rows read from a spreadsheet, whose date cells are raw Excel serials.
	FromWorkbook bool
}

// StockRecord is a cleaned line item of a stock request.
type StockRecord struct {
	ItemClean      string       `json:"item"`
	Destination    string       `json:"destination"`
	Schedule       DrugSchedule `json:"drug_schedule"`
	Date           time.Time    `json:"date"`
	SubmittingUser string       `json:"submitting_user"`
	Value          float64      `json:"value"`
	Quantity       float64      `json:"quantity"`
	RequestNumber  string       `json:"request_number"`
	Week           WeekKey      `json:"week"`
	Month          MonthKey     `json:"month"`
}

// DrugSchedule classifies an item as a controlled substance or not.
type DrugSchedule string

const (
	ScheduleNonControlled DrugSchedule = "Non-controlled"
	ScheduleControlled    DrugSchedule = "Controlled"
	ScheduleUnknown       DrugSchedule = "Unknown"
)

// Schedules lists every schedule in display order.
func Schedules() []DrugSchedule {
	return []DrugSchedule{ScheduleNonControlled, ScheduleControlled, ScheduleUnknown}
}

// Valid reports whether s is one of the three known schedules.
func (s DrugSchedule) Valid() bool {
	switch s {
	case ScheduleNonControlled, ScheduleControlled, ScheduleUnknown:
		return true
	}
	return false
}

// String returns the display name.
func (s DrugSchedule) String() string {
	return string(s)
}

// ParseDrugSchedule parses a display name or a slug such as "non-controlled".
func ParseDrugSchedule(s string) (DrugSchedule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "non-controlled", "noncontrolled", "non_controlled":
		return ScheduleNonControlled, nil
	case "controlled":
		return ScheduleControlled, nil
	case "unknown":
		return ScheduleUnknown, nil
	}
	return "", fmt.Errorf("unknown drug schedule %q", s)
}
