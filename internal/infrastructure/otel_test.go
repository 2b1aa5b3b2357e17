package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"pharmstock/internal/config"
	"pharmstock/internal/dataprocessing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTel(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *OTelConfig
		wantTracer  bool
		wantMetrics bool
		wantErr     bool
	}{
		{"defaults", nil, false, true, false},
		{"stdout traces", &OTelConfig{ServiceName: "t", TraceExporter: "stdout", MetricExporter: "prometheus", SampleRatio: 1}, true, true, false},
		{"all disabled", &OTelConfig{ServiceName: "t", TraceExporter: "none", MetricExporter: "none"}, false, false, false},
		{"bad trace exporter", &OTelConfig{TraceExporter: "jaeger"}, false, false, true},
		{"bad metric exporter", &OTelConfig{MetricExporter: "statsd"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())

			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.Equal(t, tt.wantTracer, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.PrometheusHTTP != nil)
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	cfg := OTelConfigFrom(config.TelemetryConfig{ServiceName: "svc", TraceExporter: "stdout", MetricExporter: "none"})
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, config.AppVersion, cfg.ServiceVersion)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "stdout", cfg.TraceExporter)
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "t", TraceExporter: "stdout", MetricExporter: "none", SampleRatio: 1}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))

	ctx = WithTraceID(ctx, "explicit")
	assert.Equal(t, "explicit", GetTraceID(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))

	RecordError(ctx, assert.AnError)
	assert.True(t, span.IsRecording())
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewDashboardMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordLoad(context.Background(), "stock.xlsx", 12, time.Millisecond, nil)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "dataset_loads_total")
}

func newManualMetrics(t *testing.T) (*DashboardMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewDashboardMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.Emit()] += dp.Value
	}
	return out
}

func TestDashboardMetricsRecordLoad(t *testing.T) {
	metrics, reader := newManualMetrics(t)
	ctx := context.Background()

	metrics.RecordLoad(ctx, "a.xlsx", 40, time.Millisecond, nil)
	metrics.RecordLoad(ctx, "a.xlsx", 0, time.Millisecond, fmt.Errorf("open: %w", dataprocessing.ErrSourceNotFound))
	metrics.RecordLoad(ctx, "a.xlsx", 0, time.Millisecond, fmt.Errorf("row 3: %w", dataprocessing.ErrMalformedSource))
	metrics.RecordLoad(ctx, "a.xlsx", 0, time.Millisecond, assert.AnError)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"success": 1, "not_found": 1, "malformed": 1, "error": 1},
		sumByAttr(t, data["dataset_loads_total"], "result"))

	gauge, ok := data["dataset_rows"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(40), gauge.DataPoints[0].Value)
}

func TestDashboardMetricsRecordQuery(t *testing.T) {
	metrics, reader := newManualMetrics(t)
	ctx := context.Background()

	metrics.RecordQuery(ctx, "monthly", 10, time.Millisecond, nil)
	metrics.RecordQuery(ctx, "daily", 0, time.Millisecond, nil)
	metrics.RecordQuery(ctx, "range", 0, time.Millisecond, assert.AnError)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"monthly": 1, "daily": 1, "range": 1},
		sumByAttr(t, data["dashboard_queries_total"], "mode"))
	assert.Equal(t, map[string]int64{"daily": 1},
		sumByAttr(t, data["dashboard_empty_results_total"], "mode"))
}

func TestDashboardMetricsHTTP(t *testing.T) {
	metrics, reader := newManualMetrics(t)
	ctx := context.Background()

	release := metrics.TrackActiveRequest(ctx)
	metrics.RecordHTTPRequest(ctx, http.MethodGet, "/api/dashboard", http.StatusOK, time.Millisecond)
	release()

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"/api/dashboard": 1},
		sumByAttr(t, data["http_requests_total"], "route"))
	active, ok := data["http_active_requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
}

func TestNilDashboardMetrics(t *testing.T) {
	var metrics *DashboardMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		metrics.RecordLoad(ctx, "a", 1, time.Second, nil)
		metrics.RecordQuery(ctx, "daily", 0, time.Second, nil)
		metrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Second)
		metrics.TrackActiveRequest(ctx)()
	})
}

var _ dataprocessing.LoadRecorder = (*DashboardMetrics)(nil)
