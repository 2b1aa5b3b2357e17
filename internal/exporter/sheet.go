package exporter

import (
	"time"
)

// Sheet is a flat result table ready for export.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Strings renders every row with formatCell.
func (s Sheet) Strings() [][]string {
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = formatCell(v)
		}
		out[i] = rec
	}
	return out
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case int:
		return formatInt(int64(x))
	case int64:
		return formatInt(x)
	case time.Time:
		return x.Format(time.DateOnly)
	case interface{ String() string }:
		return x.String()
	}
	return ""
}
