package analytics

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"pharmstock/pkg/contracts/domain"
)

// WardRequests counts distinct requests per ward.
type WardRequests struct {
	Destination string `json:"destination"`
	Requests    int    `json:"requests"`
}

// WardLines counts line items per ward.
type WardLines struct {
	Destination string `json:"destination"`
	Lines       int    `json:"lines"`
}

// ItemUsage summarises one item.
type ItemUsage struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Value    float64 `json:"value"`
	Requests int     `json:"requests"`
}

// ItemValue is the total value of one item.
type ItemValue struct {
	Item  string  `json:"item"`
	Value float64 `json:"value"`
}

// WardValue is the total value sent to one ward.
type WardValue struct {
	Destination string  `json:"destination"`
	Value       float64 `json:"value"`
}

// ScheduleBranch is one schedule with its wards ranked by value.
type ScheduleBranch struct {
	Schedule domain.DrugSchedule `json:"schedule"`
	Value    float64             `json:"value"`
	Wards    []WardValue         `json:"wards"`
}

// ScheduleShare is a schedule's value and its proportion of the total.
type ScheduleShare struct {
	Schedule domain.DrugSchedule `json:"schedule"`
	Value    float64             `json:"value"`
	Share    float64             `json:"share"`
}

// UserActivity summarises one submitting user.
type UserActivity struct {
	Rank     int     `json:"rank"`
	User     string  `json:"user"`
	Requests int     `json:"requests"`
	Lines    int     `json:"lines"`
	Value    float64 `json:"value"`
}

// DayTrend is one calendar day of the trend.
type DayTrend struct {
	Date     time.Time `json:"-"`
	Requests int       `json:"requests"`
	Value    float64   `json:"value"`
}

func (d DayTrend) MarshalJSON() ([]byte, error) {
	type alias DayTrend
	return json.Marshal(struct {
		Date string `json:"date"`
		alias
	}{Date: d.Date.Format(time.DateOnly), alias: alias(d)})
}

// Trend is the per-day activity over a whole table.
type Trend struct {
	Label string     `json:"label"`
	Days  []DayTrend `json:"days"`
}

// Summary holds the headline figures of a selection.
type Summary struct {
	Requests   int     `json:"requests"`
	LineItems  int     `json:"line_items"`
	TotalValue float64 `json:"total_value"`
	Wards      int     `json:"wards"`
}

// WardsByRequests ranks wards by distinct request count.
func WardsByRequests(records []domain.StockRecord) Ranked[WardRequests] {
	type acc struct {
		dest string
		reqs requestSet
	}
	g := newGroups[string, acc]()
	for _, r := range records {
		a := g.at(r.Destination, func() acc { return acc{dest: r.Destination, reqs: requestSet{}} })
		a.reqs.add(r.RequestNumber)
	}
	rows := make([]WardRequests, len(g.items))
	for i, a := range g.items {
		rows[i] = WardRequests{Destination: a.dest, Requests: len(a.reqs)}
	}
	return rank(rows, func(w WardRequests) int { return w.Requests })
}

// WardsByLines ranks wards by line item count.
func WardsByLines(records []domain.StockRecord) Ranked[WardLines] {
	g := newGroups[string, WardLines]()
	for _, r := range records {
		g.at(r.Destination, func() WardLines { return WardLines{Destination: r.Destination} }).Lines++
	}
	return rank(g.items, func(w WardLines) int { return w.Lines })
}

// ItemBreakdown ranks items by total quantity.
func ItemBreakdown(records []domain.StockRecord) Ranked[ItemUsage] {
	type acc struct {
		usage ItemUsage
		reqs  requestSet
	}
	g := newGroups[string, acc]()
	for _, r := range records {
		a := g.at(r.ItemClean, func() acc { return acc{usage: ItemUsage{Item: r.ItemClean}, reqs: requestSet{}} })
		a.usage.Quantity += r.Quantity
		a.usage.Value += r.Value
		a.reqs.add(r.RequestNumber)
	}
	rows := make([]ItemUsage, len(g.items))
	for i, a := range g.items {
		rows[i] = a.usage
		rows[i].Requests = len(a.reqs)
	}
	return rank(rows, func(u ItemUsage) float64 { return u.Quantity })
}

// ItemValues ranks items by total value.
func ItemValues(records []domain.StockRecord) Ranked[ItemValue] {
	g := newGroups[string, ItemValue]()
	for _, r := range records {
		g.at(r.ItemClean, func() ItemValue { return ItemValue{Item: r.ItemClean} }).Value += r.Value
	}
	return rank(g.items, func(v ItemValue) float64 { return v.Value })
}

// ScheduleWardValues ranks schedules by value, each with its wards ranked by value.
func ScheduleWardValues(records []domain.StockRecord) Ranked[ScheduleBranch] {
	type acc struct {
		schedule domain.DrugSchedule
		total    float64
		wards    *groups[string, WardValue]
	}
	g := newGroups[domain.DrugSchedule, acc]()
	for _, r := range records {
		a := g.at(r.Schedule, func() acc {
			return acc{schedule: r.Schedule, wards: newGroups[string, WardValue]()}
		})
		a.total += r.Value
		a.wards.at(r.Destination, func() WardValue { return WardValue{Destination: r.Destination} }).Value += r.Value
	}
	rows := make([]ScheduleBranch, len(g.items))
	for i, a := range g.items {
		rows[i] = ScheduleBranch{
			Schedule: a.schedule,
			Value:    a.total,
			Wards:    rank(a.wards.items, func(w WardValue) float64 { return w.Value }).rows,
		}
	}
	return rank(rows, func(b ScheduleBranch) float64 { return b.Value })
}

// ScheduleShares ranks schedules by value with each one's share of the total.
// Shares are 0 when the total is 0.
func ScheduleShares(records []domain.StockRecord) Ranked[ScheduleShare] {
	g := newGroups[domain.DrugSchedule, ScheduleShare]()
	var total float64
	for _, r := range records {
		g.at(r.Schedule, func() ScheduleShare { return ScheduleShare{Schedule: r.Schedule} }).Value += r.Value
		total += r.Value
	}
	if total != 0 {
		for i := range g.items {
			g.items[i].Share = g.items[i].Value / total
		}
	}
	return rank(g.items, func(s ScheduleShare) float64 { return s.Value })
}

// TopUsers ranks submitting users by distinct request count and numbers them from 1.
func TopUsers(records []domain.StockRecord) Ranked[UserActivity] {
	type acc struct {
		activity UserActivity
		reqs     requestSet
	}
	g := newGroups[string, acc]()
	for _, r := range records {
		a := g.at(r.SubmittingUser, func() acc {
			return acc{activity: UserActivity{User: r.SubmittingUser}, reqs: requestSet{}}
		})
		a.activity.Lines++
		a.activity.Value += r.Value
		a.reqs.add(r.RequestNumber)
	}
	rows := make([]UserActivity, len(g.items))
	for i, a := range g.items {
		rows[i] = a.activity
		rows[i].Requests = len(a.reqs)
	}
	ranked := rank(rows, func(u UserActivity) int { return u.Requests })
	for i := range ranked.rows {
		ranked.rows[i].Rank = i + 1
	}
	return ranked
}

// DailyTrend aggregates every record of src by calendar day, oldest first.
// It ignores any ward, schedule or time selection.
func DailyTrend(src Records) Trend {
	type acc struct {
		day  DayTrend
		reqs requestSet
	}
	g := newGroups[time.Time, acc]()
	var first, last time.Time
	for r := range src.All() {
		d := domain.CivilDate(r.Date)
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
		a := g.at(d, func() acc { return acc{day: DayTrend{Date: d}, reqs: requestSet{}} })
		a.day.Value += r.Value
		a.reqs.add(r.RequestNumber)
	}

	days := make([]DayTrend, len(g.items))
	for i, a := range g.items {
		days[i] = a.day
		days[i].Requests = len(a.reqs)
	}
	slices.SortFunc(days, func(a, b DayTrend) int { return a.Date.Compare(b.Date) })
	return Trend{Label: RangeLabel(first, last), Days: days}
}

// RangeLabel names the months covered by [first, last], e.g. "September 2024",
// "August – September 2024" or "December 2024 – January 2025".
func RangeLabel(first, last time.Time) string {
	if first.IsZero() || last.IsZero() {
		return ""
	}
	from, to := domain.MonthOf(first), domain.MonthOf(last)
	switch {
	case from == to:
		return from.Label()
	case from.Year == to.Year:
		return fmt.Sprintf("%s – %s", from.Month, to.Label())
	default:
		return fmt.Sprintf("%s – %s", from.Label(), to.Label())
	}
}

// Summarize computes the headline figures of records.
func Summarize(records []domain.StockRecord) Summary {
	reqs := requestSet{}
	wards := make(map[string]struct{})
	s := Summary{LineItems: len(records)}
	for _, r := range records {
		reqs.add(r.RequestNumber)
		wards[r.Destination] = struct{}{}
		s.TotalValue += r.Value
	}
	s.Requests = len(reqs)
	s.Wards = len(wards)
	return s
}
