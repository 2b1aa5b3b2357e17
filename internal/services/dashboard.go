package services

import (
	"context"
	"fmt"
	"time"

	"pharmstock/internal/analytics"
	"pharmstock/internal/dataprocessing"
	"pharmstock/pkg/contracts/domain"
)

// Highlight marks the selected period on the trend chart.
type Highlight struct {
	Date  string `json:"date,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// TrendView is the daily trend with the current selection highlighted.
type TrendView struct {
	analytics.Trend
	Highlight *Highlight `json:"highlight,omitempty"`
}

// SelectionView echoes the resolved selection.
type SelectionView struct {
	Mode      Mode                  `json:"mode"`
	Period    string                `json:"period"`
	Start     string                `json:"start,omitempty"`
	End       string                `json:"end,omitempty"`
	Wards     []string              `json:"wards"`
	Schedules []domain.DrugSchedule `json:"schedules"`
	TopN      int                   `json:"top_n"`
}

// Footer describes the whole dataset rather than the selection.
type Footer struct {
	Source    string `json:"source"`
	Rows      int    `json:"rows"`
	DateRange string `json:"date_range"`
}

// Dashboard is the complete response for one selection.
type Dashboard struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Selection SelectionView `json:"selection"`

	Summary         analytics.Summary          `json:"summary"`
	WardsByRequests []analytics.WardRequests   `json:"wards_by_requests"`
	WardsByLines    []analytics.WardLines      `json:"wards_by_lines"`
	TopItems        []analytics.ItemUsage      `json:"top_items"`
	TopItemValues   []analytics.ItemValue      `json:"top_item_values"`
	ScheduleWards   []analytics.ScheduleBranch `json:"schedule_wards"`
	ScheduleShares  []analytics.ScheduleShare  `json:"schedule_shares"`
	TopUsers        []analytics.UserActivity   `json:"top_users"`
	Items           []analytics.ItemUsage      `json:"items"`

	// Trend is omitted in monthly mode.
	Trend  *TrendView `json:"trend,omitempty"`
	Footer Footer     `json:"footer"`
}

// Dashboard runs every query for q. An empty selection is not an error: the
// result has status no_data and empty tables.
func (s *DashboardService) Dashboard(ctx context.Context, q DashboardQuery) (*Dashboard, error) {
	res, err := s.observe(ctx, "dashboard", q, func(ctx context.Context) (*selection, error) {
		return s.selectRecords(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return buildDashboard(res), nil
}

func buildDashboard(res *selection) *Dashboard {
	sel, recs, n := res.sel, res.records, res.sel.TopN

	d := &Dashboard{
		Status:          StatusSuccess,
		Selection:       selectionView(sel),
		Summary:         analytics.Summarize(recs),
		WardsByRequests: analytics.WardsByRequests(recs).Top(n),
		WardsByLines:    analytics.WardsByLines(recs).Top(n),
		TopItems:        analytics.ItemBreakdown(recs).Top(n),
		TopItemValues:   analytics.ItemValues(recs).Top(n),
		ScheduleWards:   analytics.ScheduleWardValues(recs).All(),
		ScheduleShares:  analytics.ScheduleShares(recs).All(),
		TopUsers:        analytics.TopUsers(recs).Top(n),
		Items:           analytics.ItemBreakdown(recs).All(),
		Footer:          footer(res.table),
	}

	switch {
	case res.table.Empty():
		d.Status, d.Message = StatusNoData, emptySetMessage
	case len(recs) == 0:
		d.Status, d.Message = StatusNoData, noMatchMessage
	}

	if sel.Mode != ModeMonthly && !res.table.Empty() {
		d.Trend = &TrendView{Trend: analytics.DailyTrend(res.table), Highlight: highlight(sel)}
	}
	return d
}

func selectionView(sel Selection) SelectionView {
	v := SelectionView{
		Mode:      sel.Mode,
		Period:    sel.Period,
		Wards:     sel.Filter.Destinations,
		Schedules: sel.Filter.Schedules,
		TopN:      sel.TopN,
	}
	if v.Wards == nil {
		v.Wards = []string{}
	}
	if v.Schedules == nil {
		v.Schedules = []domain.DrugSchedule{}
	}
	if !sel.Filter.Window.Start.IsZero() {
		v.Start = sel.Filter.Window.Start.Format(time.DateOnly)
		v.End = sel.Filter.Window.End.Format(time.DateOnly)
	}
	return v
}

func highlight(sel Selection) *Highlight {
	w := sel.Filter.Window
	switch sel.Mode {
	case ModeDaily:
		return &Highlight{Date: w.Start.Format(time.DateOnly)}
	case ModeWeekly, ModeRange:
		return &Highlight{Start: w.Start.Format(time.DateOnly), End: w.End.Format(time.DateOnly)}
	}
	return nil
}

func footer(t *dataprocessing.Table) Footer {
	f := Footer{Source: t.Source(), Rows: t.Len()}
	if !t.Empty() {
		f.DateRange = fmt.Sprintf("%s – %s", t.MinDate().Format(shortDateLayout), t.MaxDate().Format(shortDateLayout))
	}
	return f
}
