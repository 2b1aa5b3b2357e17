package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/config"
	"pharmstock/internal/dataprocessing"
	"pharmstock/internal/shared/testutil"
)

// newTestConfig points a default configuration at a fresh fixture workbook.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dataset.Path = testutil.WriteStockWorkbook(t, t.TempDir(), testutil.SampleStockRows())
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

// newTestApp builds an application whose logs are captured but never echoed;
// websocket pumps may log after the test has returned.
func newTestApp(t *testing.T, cfg *config.Config) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	handler := testutil.NewBufferedSlogHandler(nil)
	a, err := New(cfg, slog.New(handler))
	require.NoError(t, err)
	return a, handler
}

func decodeJSON(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestApplication_Routes(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantType   string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, "application/json"},
		{"liveness", http.MethodGet, "/api/health/live", http.StatusOK, "application/json"},
		{"readiness", http.MethodGet, "/api/health/ready", http.StatusOK, "application/json"},
		{"version", http.MethodGet, "/api/version", http.StatusOK, "application/json"},
		{"dashboard", http.MethodGet, "/api/dashboard?month=2024-09", http.StatusOK, "application/json"},
		{"table", http.MethodGet, "/api/dashboard/items?month=2024-09", http.StatusOK, "application/json"},
		{"unknown table", http.MethodGet, "/api/dashboard/nope", http.StatusNotFound, "application/json"},
		{"dataset", http.MethodGet, "/api/dataset", http.StatusOK, "application/json"},
		{"options", http.MethodGet, "/api/dataset/options", http.StatusOK, "application/json"},
		{"csv export", http.MethodGet, "/api/export/items.csv?month=2024-09", http.StatusOK, "text/csv"},
		{"workbook export", http.MethodGet, "/api/export/dashboard.xlsx?month=2024-09", http.StatusOK, "spreadsheetml"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "text/plain"},
		{"not found", http.MethodGet, "/nope", http.StatusNotFound, "application/json"},
		{"bad selection", http.MethodGet, "/api/dashboard?top_n=many", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.wantType)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestApplication_DashboardSummary(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/dashboard?month=2024-09")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp.Body)
	assert.Equal(t, "success", body["status"])
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(5), summary["requests"])
	assert.Equal(t, float64(6), summary["line_items"])
	assert.InDelta(t, 87.5, summary["total_value"], 0.001)
	assert.Equal(t, float64(3), summary["wards"])
}

func TestApplication_MethodNotAllowed(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/dataset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApplication_ReloadGuard(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		header     string
		wantStatus int
	}{
		{"open when no keys configured", nil, "", http.StatusOK},
		{"missing key", []string{"s3cret"}, "", http.StatusUnauthorized},
		{"wrong key", []string{"s3cret"}, "guess", http.StatusUnauthorized},
		{"valid key", []string{"other", "s3cret"}, "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			cfg.Security.ReloadAPIKeys = tt.keys
			a, logs := newTestApp(t, cfg)

			req := httptest.NewRequest(http.MethodPost, "/api/dataset/reload", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			a.Router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.True(t, logs.ContainsMessage("audit log"))
			}
		})
	}
}

func TestApplication_RateLimit(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	a, _ := newTestApp(t, cfg)

	first := httptest.NewRecorder()
	a.Router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	second := httptest.NewRecorder()
	a.Router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestApplication_CORS(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Security.AllowedOrigins = []string{"http://dashboard.local"}
	a, _ := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestApplication_StartFailsWithoutDataset(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.xlsx")
	a, logs := newTestApp(t, cfg)
	a.Server.Addr = "127.0.0.1:0"

	err := a.Start(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataprocessing.ErrSourceNotFound), err.Error())
	assert.Empty(t, a.Addr())
	assert.True(t, logs.ContainsMessage("Dataset could not be loaded"))
}

func TestApplication_StartStop(t *testing.T) {
	a, logs := newTestApp(t, newTestConfig(t))
	a.Server.Addr = "127.0.0.1:0"

	require.NoError(t, a.Start(context.Background(), nil))
	require.NotEmpty(t, a.Addr())
	assert.True(t, logs.ContainsMessage("Dataset loaded"))

	resp, err := http.Get("http://" + a.Addr() + "/api/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, logs.ContainsMessage("Application shutdown complete"))

	_, err = http.Get("http://" + a.Addr() + "/api/health")
	assert.Error(t, err)
}

func TestApplication_ReloadNotifiesWebSocketClients(t *testing.T) {
	a, _ := newTestApp(t, newTestConfig(t))
	a.Server.Addr = "127.0.0.1:0"
	require.NoError(t, a.Start(context.Background(), nil))
	defer a.Stop(context.Background())

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+a.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	readType := func() string {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg.Type
	}
	assert.Equal(t, "connection", readType())

	reload, err := http.Post("http://"+a.Addr()+"/api/dataset/reload", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	reload.Body.Close()
	require.Equal(t, http.StatusOK, reload.StatusCode)

	assert.Equal(t, "dataset:reloaded", readType())
}
