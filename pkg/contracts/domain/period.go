package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CivilDate truncates t to midnight UTC of its calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekKey identifies an ISO calendar week by its Monday.
type WeekKey struct {
	Start time.Time
}

// WeekOf returns the week containing d.
func WeekOf(d time.Time) WeekKey {
	d = CivilDate(d)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return WeekKey{Start: d.AddDate(0, 0, -offset)}
}

// ParseWeekKey parses a YYYY-MM-DD date and returns the week containing it.
func ParseWeekKey(s string) (WeekKey, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return WeekKey{}, fmt.Errorf("invalid week %q: %w", s, err)
	}
	return WeekOf(d), nil
}

// End returns the Sunday closing the week.
func (w WeekKey) End() time.Time {
	return w.Start.AddDate(0, 0, 6)
}

// ISOWeek returns the ISO year and week number.
func (w WeekKey) ISOWeek() (year, week int) {
	return w.Start.ISOWeek()
}

// Contains reports whether the calendar date of d falls inside the week.
func (w WeekKey) Contains(d time.Time) bool {
	d = CivilDate(d)
	return !d.Before(w.Start) && !d.After(w.End())
}

// Compare orders weeks chronologically.
func (w WeekKey) Compare(o WeekKey) int {
	return w.Start.Compare(o.Start)
}

// Before reports whether w starts before o.
func (w WeekKey) Before(o WeekKey) bool {
	return w.Compare(o) < 0
}

// IsZero reports whether the key is unset.
func (w WeekKey) IsZero() bool {
	return w.Start.IsZero()
}

// Label renders e.g. "Week 36  (Sep 02 – Sep 08)".
func (w WeekKey) Label() string {
	_, week := w.ISOWeek()
	return fmt.Sprintf("Week %d  (%s – %s)", week, w.Start.Format("Jan 02"), w.End().Format("Jan 02"))
}

// String returns the Monday as YYYY-MM-DD, the form ParseWeekKey accepts.
func (w WeekKey) String() string {
	return w.Start.Format(time.DateOnly)
}

func (w WeekKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing d.
func MonthOf(d time.Time) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

// ParseMonthKey parses YYYY-MM.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Start returns the first day of the month.
func (m MonthKey) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the month.
func (m MonthKey) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Contains reports whether d falls inside the month.
func (m MonthKey) Contains(d time.Time) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

// Compare orders months chronologically.
func (m MonthKey) Compare(o MonthKey) int {
	switch {
	case m.Year != o.Year:
		return cmpInt(m.Year, o.Year)
	default:
		return cmpInt(int(m.Month), int(o.Month))
	}
}

// Before reports whether m precedes o.
func (m MonthKey) Before(o MonthKey) bool {
	return m.Compare(o) < 0
}

// IsZero reports whether the key is unset.
func (m MonthKey) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Label renders e.g. "September 2024".
func (m MonthKey) Label() string {
	return m.Start().Format("January 2006")
}

// String renders YYYY-MM.
func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m MonthKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
