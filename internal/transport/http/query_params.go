package http

import (
	"net/http"
	"strconv"
	"strings"

	apierrors "pharmstock/internal/errors"
	"pharmstock/internal/services"
)

// parseDashboardQuery reads a selection from the URL query. Only top_n is
// checked here; everything else is validated by the service.
func parseDashboardQuery(r *http.Request) (services.DashboardQuery, error) {
	values := r.URL.Query()
	q := services.DashboardQuery{
		Mode:      strings.TrimSpace(values.Get("mode")),
		Date:      strings.TrimSpace(values.Get("date")),
		Week:      strings.TrimSpace(values.Get("week")),
		Month:     strings.TrimSpace(values.Get("month")),
		Start:     strings.TrimSpace(values.Get("start")),
		End:       strings.TrimSpace(values.Get("end")),
		Wards:     multi(values["ward"]),
		Schedules: multi(values["schedule"]),
	}

	if raw := strings.TrimSpace(values.Get("top_n")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, apierrors.ErrValidation("top_n", "must be a whole number")
		}
		q.TopN = n
	}
	return q, nil
}

// multi trims repeated parameters and drops empty ones. Ward names may
// contain commas, so values are never split.
func multi(raw []string) []string {
	var out []string
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
