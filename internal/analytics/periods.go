package analytics

import (
	"slices"
	"time"

	"pharmstock/pkg/contracts/domain"
)

// WeekOption is a selectable week present in the data.
type WeekOption struct {
	Key   domain.WeekKey `json:"key"`
	Label string         `json:"label"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// MonthOption is a selectable month present in the data.
type MonthOption struct {
	Key   domain.MonthKey `json:"key"`
	Label string          `json:"label"`
	Start string          `json:"start"`
	End   string          `json:"end"`
}

// Weeks lists the distinct weeks of src in ascending order.
func Weeks(src Records) []WeekOption {
	seen := make(map[domain.WeekKey]struct{})
	var keys []domain.WeekKey
	for r := range src.All() {
		if _, ok := seen[r.Week]; ok {
			continue
		}
		seen[r.Week] = struct{}{}
		keys = append(keys, r.Week)
	}
	slices.SortFunc(keys, domain.WeekKey.Compare)

	out := make([]WeekOption, len(keys))
	for i, k := range keys {
		out[i] = WeekOption{
			Key:   k,
			Label: k.Label(),
			Start: k.Start.Format(time.DateOnly),
			End:   k.End().Format(time.DateOnly),
		}
	}
	return out
}

// Months lists the distinct months of src in ascending order.
func Months(src Records) []MonthOption {
	seen := make(map[domain.MonthKey]struct{})
	var keys []domain.MonthKey
	for r := range src.All() {
		if _, ok := seen[r.Month]; ok {
			continue
		}
		seen[r.Month] = struct{}{}
		keys = append(keys, r.Month)
	}
	slices.SortFunc(keys, domain.MonthKey.Compare)

	out := make([]MonthOption, len(keys))
	for i, k := range keys {
		out[i] = MonthOption{
			Key:   k,
			Label: k.Label(),
			Start: k.Start().Format(time.DateOnly),
			End:   k.End().Format(time.DateOnly),
		}
	}
	return out
}

// Destinations lists the distinct wards of src sorted ascending.
func Destinations(src Records) []string {
	seen := make(map[string]struct{})
	var out []string
	for r := range src.All() {
		if _, ok := seen[r.Destination]; ok {
			continue
		}
		seen[r.Destination] = struct{}{}
		out = append(out, r.Destination)
	}
	slices.Sort(out)
	return out
}

// ScheduleOptions returns the selectable schedules in display order.
func ScheduleOptions() []domain.DrugSchedule {
	return domain.Schedules()
}
