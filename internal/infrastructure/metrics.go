package infrastructure

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pharmstock/internal/dataprocessing"
)

// DashboardMetrics holds the application's instruments. A nil
// *DashboardMetrics records nothing.
type DashboardMetrics struct {
	datasetLoads        metric.Int64Counter
	datasetLoadDuration metric.Float64Histogram
	datasetRows         metric.Int64Gauge

	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	emptyResults  metric.Int64Counter

	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpActiveRequests  metric.Int64UpDownCounter
}

// NewDashboardMetrics creates the instruments on meter.
func NewDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	var (
		m   DashboardMetrics
		err error
		all []error
	)

	m.datasetLoads, err = meter.Int64Counter("dataset_loads_total",
		metric.WithDescription("Dataset load attempts by result"))
	all = append(all, err)
	m.datasetLoadDuration, err = meter.Float64Histogram("dataset_load_duration_seconds",
		metric.WithDescription("Time spent reading and normalising the dataset"),
		metric.WithUnit("s"))
	all = append(all, err)
	m.datasetRows, err = meter.Int64Gauge("dataset_rows",
		metric.WithDescription("Rows in the most recently loaded dataset"))
	all = append(all, err)

	m.queriesTotal, err = meter.Int64Counter("dashboard_queries_total",
		metric.WithDescription("Dashboard queries by mode and result"))
	all = append(all, err)
	m.queryDuration, err = meter.Float64Histogram("dashboard_query_duration_seconds",
		metric.WithDescription("Dashboard query duration in seconds"),
		metric.WithUnit("s"))
	all = append(all, err)
	m.emptyResults, err = meter.Int64Counter("dashboard_empty_results_total",
		metric.WithDescription("Dashboard queries whose selection matched no records"))
	all = append(all, err)

	m.httpRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	all = append(all, err)
	m.httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"))
	all = append(all, err)
	m.httpActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"))
	all = append(all, err)

	if err := errors.Join(all...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordLoad implements dataprocessing.LoadRecorder.
func (m *DashboardMetrics) RecordLoad(ctx context.Context, source string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := loadResult(err)
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.datasetLoads.Add(ctx, 1, attrs)
	m.datasetLoadDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil {
		m.datasetRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("source", source)))
	}
}

func loadResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, dataprocessing.ErrSourceNotFound):
		return "not_found"
	case errors.Is(err, dataprocessing.ErrMalformedSource):
		return "malformed"
	default:
		return "error"
	}
}

// RecordQuery records one dashboard query. matched is the number of
// records the selection kept.
func (m *DashboardMetrics) RecordQuery(ctx context.Context, mode string, matched int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode), attribute.String("result", result))
	m.queriesTotal.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil && matched == 0 {
		m.emptyResults.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	}
}

// RecordHTTPRequest records a completed request against its route pattern.
func (m *DashboardMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// TrackActiveRequest increments the in-flight gauge and returns its release.
func (m *DashboardMetrics) TrackActiveRequest(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.httpActiveRequests.Add(ctx, 1)
	return func() { m.httpActiveRequests.Add(ctx, -1) }
}
