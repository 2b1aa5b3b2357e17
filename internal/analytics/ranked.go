package analytics

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Top-N bounds for presentation slices.
const (
	MinTopN     = 5
	MaxTopN     = 50
	DefaultTopN = 20
)

// ValidateTopN checks n against the presentation bounds.
func ValidateTopN(n int) error {
	if n < MinTopN || n > MaxTopN {
		return fmt.Errorf("top_n must be between %d and %d, got %d", MinTopN, MaxTopN, n)
	}
	return nil
}

// Ranked is a fully ranked result table. Truncation happens only through Top.
type Ranked[T any] struct {
	rows []T
}

// rank sorts rows by key descending. Equal keys keep their input order.
func rank[T any, K cmp.Ordered](rows []T, key func(T) K) Ranked[T] {
	slices.SortStableFunc(rows, func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	})
	return Ranked[T]{rows: rows}
}

// All returns a copy of every ranked row. The result is never nil.
func (r Ranked[T]) All() []T {
	return append(make([]T, 0, len(r.rows)), r.rows...)
}

// Top returns the first n rows, or all of them when n is not positive.
func (r Ranked[T]) Top(n int) []T {
	if n <= 0 || n >= len(r.rows) {
		return r.All()
	}
	return append(make([]T, 0, n), r.rows[:n]...)
}

func (r Ranked[T]) Len() int { return len(r.rows) }

func (r Ranked[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.All())
}

// groups accumulates values per key in first-appearance order.
type groups[K comparable, V any] struct {
	index map[K]int
	items []V
}

func newGroups[K comparable, V any]() *groups[K, V] {
	return &groups[K, V]{index: make(map[K]int)}
}

// at returns the accumulator for k, creating it with init on first sight.
// The pointer is valid until the next call.
func (g *groups[K, V]) at(k K, init func() V) *V {
	i, ok := g.index[k]
	if !ok {
		i = len(g.items)
		g.index[k] = i
		g.items = append(g.items, init())
	}
	return &g.items[i]
}

// requestSet counts distinct request numbers. Blank or whitespace-only numbers are not requests.
type requestSet map[string]struct{}

func (s requestSet) add(req string) {
	if strings.TrimSpace(req) != "" {
		s[req] = struct{}{}
	}
}
