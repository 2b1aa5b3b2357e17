// Package analytics filters the stock request table and computes the ranked
// dashboard queries over the selection.
package analytics

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"pharmstock/pkg/contracts/domain"
)

// ErrInvalidWindow is returned for a time window that selects nothing meaningful.
var ErrInvalidWindow = errors.New("invalid time window")

// Records is a read-only, ordered record source such as *dataprocessing.Table.
type Records interface {
	All() iter.Seq[domain.StockRecord]
}

// WindowMode names the active time selection.
type WindowMode string

const (
	WindowExactDate WindowMode = "date"
	WindowDateRange WindowMode = "range"
	WindowMonth     WindowMode = "month"
)

// TimeWindow restricts records by date. Exactly one mode is active.
type TimeWindow struct {
	Mode  WindowMode
	Start time.Time
	End   time.Time
	Month domain.MonthKey
}

// OnDate selects a single calendar date.
func OnDate(d time.Time) TimeWindow {
	d = domain.CivilDate(d)
	return TimeWindow{Mode: WindowExactDate, Start: d, End: d}
}

// Between selects an inclusive date range.
func Between(start, end time.Time) TimeWindow {
	return TimeWindow{Mode: WindowDateRange, Start: domain.CivilDate(start), End: domain.CivilDate(end)}
}

// InWeek selects the Monday to Sunday range of w.
func InWeek(w domain.WeekKey) TimeWindow {
	return Between(w.Start, w.End())
}

// InMonth selects a calendar month.
func InMonth(m domain.MonthKey) TimeWindow {
	return TimeWindow{Mode: WindowMonth, Month: m, Start: m.Start(), End: m.End()}
}

// Validate rejects unset modes, inverted ranges and invalid months.
func (w TimeWindow) Validate() error {
	switch w.Mode {
	case WindowExactDate:
		if w.Start.IsZero() {
			return fmt.Errorf("%w: date is required", ErrInvalidWindow)
		}
	case WindowDateRange:
		if w.Start.IsZero() || w.End.IsZero() {
			return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
		}
		if w.Start.After(w.End) {
			return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
				w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
		}
	case WindowMonth:
		if w.Month.Month < time.January || w.Month.Month > time.December || w.Month.Year == 0 {
			return fmt.Errorf("%w: month %s", ErrInvalidWindow, w.Month)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidWindow, w.Mode)
	}
	return nil
}

// Contains reports whether the date falls inside the window.
func (w TimeWindow) Contains(d time.Time) bool {
	switch w.Mode {
	case WindowExactDate:
		return domain.CivilDate(d).Equal(w.Start)
	case WindowDateRange:
		d = domain.CivilDate(d)
		return !d.Before(w.Start) && !d.After(w.End)
	case WindowMonth:
		return w.Month.Contains(d)
	}
	return false
}

// FilterSpec combines a time window with optional ward and schedule sets.
// An empty set places no restriction on its dimension.
type FilterSpec struct {
	Window       TimeWindow
	Destinations []string
	Schedules    []domain.DrugSchedule
}

// Matches reports whether r passes every predicate of the filter.
func (s FilterSpec) Matches(r domain.StockRecord) bool {
	if !s.Window.Contains(r.Date) {
		return false
	}
	if len(s.Destinations) > 0 && !slices.Contains(s.Destinations, r.Destination) {
		return false
	}
	if len(s.Schedules) > 0 && !slices.Contains(s.Schedules, r.Schedule) {
		return false
	}
	return true
}

// Filter returns the matching records in source order. An empty result is not an error.
func Filter(src Records, spec FilterSpec) ([]domain.StockRecord, error) {
	if err := spec.Window.Validate(); err != nil {
		return nil, err
	}
	out := make([]domain.StockRecord, 0)
	for r := range src.All() {
		if spec.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
