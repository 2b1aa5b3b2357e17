package services

import (
	"context"
	"fmt"
	"slices"

	"pharmstock/internal/analytics"
	"pharmstock/internal/exporter"
)

// QueryName identifies one ranked dashboard table.
type QueryName string

const (
	QueryWardsByRequests QueryName = "wards-requests"
	QueryWardsByLines    QueryName = "wards-lines"
	QueryItems           QueryName = "items"
	QueryItemValues      QueryName = "item-values"
	QueryScheduleWards   QueryName = "schedule-wards"
	QueryScheduleShares  QueryName = "schedule-shares"
	QueryUsers           QueryName = "users"
	QueryDailyTrend      QueryName = "daily-trend"
)

// QueryNames lists every table in display order.
func QueryNames() []QueryName {
	return []QueryName{
		QueryWardsByRequests, QueryWardsByLines, QueryItems, QueryItemValues,
		QueryScheduleWards, QueryScheduleShares, QueryUsers, QueryDailyTrend,
	}
}

// ParseQueryName validates a table name.
func ParseQueryName(s string) (QueryName, error) {
	q := QueryName(s)
	if !slices.Contains(QueryNames(), q) {
		return "", fmt.Errorf("%w: %q", ErrUnknownQuery, s)
	}
	return q, nil
}

// QueryTable is one full, untruncated table.
type QueryTable struct {
	Query  QueryName `json:"query"`
	Status string    `json:"status"`
	Period string    `json:"period"`
	Total  int       `json:"total"`
	Rows   any       `json:"rows"`

	sheet exporter.Sheet
}

// Sheet returns the table in export form.
func (t *QueryTable) Sheet() exporter.Sheet { return t.sheet }

// Table runs a single query over the selection and returns every row.
func (s *DashboardService) Table(ctx context.Context, name QueryName, q DashboardQuery) (*QueryTable, error) {
	if _, err := ParseQueryName(string(name)); err != nil {
		return nil, err
	}
	res, err := s.observe(ctx, string(name), q, func(ctx context.Context) (*selection, error) {
		return s.selectRecords(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return buildTable(name, res), nil
}

// Sheets returns every table of the selection for a workbook export, headed
// by a summary sheet.
func (s *DashboardService) Sheets(ctx context.Context, q DashboardQuery) ([]exporter.Sheet, error) {
	res, err := s.observe(ctx, "export", q, func(ctx context.Context) (*selection, error) {
		return s.selectRecords(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	sheets := []exporter.Sheet{summarySheet(res)}
	for _, name := range QueryNames() {
		sheets = append(sheets, buildTable(name, res).Sheet())
	}
	return sheets, nil
}

func summarySheet(res *selection) exporter.Sheet {
	sum := analytics.Summarize(res.records)
	return exporter.Sheet{
		Name:    "Summary",
		Headers: []string{"Metric", "Value"},
		Rows: [][]any{
			{"Period", res.sel.Period},
			{"Requests", sum.Requests},
			{"Line items", sum.LineItems},
			{"Total value", exporter.Currency(sum.TotalValue)},
			{"Wards", sum.Wards},
			{"Dataset rows", res.table.Len()},
		},
	}
}

func buildTable(name QueryName, res *selection) *QueryTable {
	recs := res.records
	t := &QueryTable{Query: name, Status: StatusSuccess, Period: res.sel.Period}
	if len(recs) == 0 && name != QueryDailyTrend {
		t.Status = StatusNoData
	}

	sheet := exporter.Sheet{Name: string(name)}
	switch name {
	case QueryWardsByRequests:
		rows := analytics.WardsByRequests(recs).All()
		sheet.Headers = []string{"Destination", "Requests"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Destination, r.Requests})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryWardsByLines:
		rows := analytics.WardsByLines(recs).All()
		sheet.Headers = []string{"Destination", "Line items"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Destination, r.Lines})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryItems:
		rows := analytics.ItemBreakdown(recs).All()
		sheet.Headers = []string{"Item", "Quantity", "Value", "Requests"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Item, r.Quantity, r.Value, r.Requests})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryItemValues:
		rows := analytics.ItemValues(recs).All()
		sheet.Headers = []string{"Item", "Value"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Item, r.Value})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryScheduleWards:
		rows := analytics.ScheduleWardValues(recs).All()
		sheet.Headers = []string{"Schedule", "Destination", "Value"}
		for _, b := range rows {
			for _, w := range b.Wards {
				sheet.Rows = append(sheet.Rows, []any{b.Schedule, w.Destination, w.Value})
			}
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryScheduleShares:
		rows := analytics.ScheduleShares(recs).All()
		sheet.Headers = []string{"Schedule", "Value", "Share"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Schedule, r.Value, r.Share})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryUsers:
		rows := analytics.TopUsers(recs).All()
		sheet.Headers = []string{"Rank", "User", "Requests", "Line items", "Value"}
		for _, r := range rows {
			sheet.Rows = append(sheet.Rows, []any{r.Rank, r.User, r.Requests, r.Lines, r.Value})
		}
		t.Rows, t.Total = rows, len(rows)

	case QueryDailyTrend:
		trend := analytics.DailyTrend(res.table)
		sheet.Headers = []string{"Date", "Requests", "Value"}
		for _, d := range trend.Days {
			sheet.Rows = append(sheet.Rows, []any{d.Date, d.Requests, d.Value})
		}
		t.Period = trend.Label
		t.Rows, t.Total = trend.Days, len(trend.Days)
		if len(trend.Days) == 0 {
			t.Status = StatusNoData
		}
	}
	t.sheet = sheet
	return t
}
