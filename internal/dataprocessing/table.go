package dataprocessing

import (
	"iter"
	"slices"
	"time"

	"pharmstock/pkg/contracts/domain"
)

// Table is an immutable, ordered set of normalized stock records.
// It is safe to share between goroutines.
type Table struct {
	source   string
	loadedAt time.Time
	records  []domain.StockRecord
	minDate  time.Time
	maxDate  time.Time
}

// NewTable copies records into a new Table and computes its date bounds.
func NewTable(source string, records []domain.StockRecord) *Table {
	t := &Table{
		source:   source,
		loadedAt: time.Now().UTC(),
		records:  slices.Clone(records),
	}
	for i, r := range t.records {
		if i == 0 || r.Date.Before(t.minDate) {
			t.minDate = r.Date
		}
		if i == 0 || r.Date.After(t.maxDate) {
			t.maxDate = r.Date
		}
	}
	return t
}

// All yields records in source order.
func (t *Table) All() iter.Seq[domain.StockRecord] {
	return func(yield func(domain.StockRecord) bool) {
		for _, r := range t.records {
			if !yield(r) {
				return
			}
		}
	}
}

// Records returns a copy of the records.
func (t *Table) Records() []domain.StockRecord {
	return slices.Clone(t.records)
}

func (t *Table) Len() int { return len(t.records) }

func (t *Table) Empty() bool { return len(t.records) == 0 }

// MinDate is the earliest record date, zero for an empty table.
func (t *Table) MinDate() time.Time { return t.minDate }

// MaxDate is the latest record date, zero for an empty table.
func (t *Table) MaxDate() time.Time { return t.maxDate }

// Source is the path the table was loaded from.
func (t *Table) Source() string { return t.source }

func (t *Table) LoadedAt() time.Time { return t.loadedAt }
