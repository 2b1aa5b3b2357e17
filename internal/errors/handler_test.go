package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/analytics"
	"pharmstock/internal/dataprocessing"
	"pharmstock/internal/shared/testutil"
)

type fieldErr struct{ fields []ValidationError }

func (e fieldErr) Error() string                  { return "invalid query" }
func (e fieldErr) FieldErrors() []ValidationError { return e.fields }

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantTitle  string
		wantLevel  slog.Level
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
			wantLevel:  slog.LevelError,
		},
		{
			name:       "field validation",
			err:        fmt.Errorf("dashboard: %w", fieldErr{[]ValidationError{{Field: "mode", Message: "must be one of: daily weekly monthly range"}}}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Validation Failed",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "invalid window",
			err:        fmt.Errorf("%w: start after end", analytics.ErrInvalidWindow),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Validation Failed",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "source not found",
			err:        &dataprocessing.SourceError{Kind: dataprocessing.ErrSourceNotFound, Path: "/srv/data/stock.xlsx"},
			wantStatus: http.StatusNotFound,
			wantType:   TypeSourceNotFound,
			wantTitle:  "Dataset Not Found",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "malformed source",
			err:        fmt.Errorf("load: %w", dataprocessing.ErrMalformedSource),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeSourceMalformed,
			wantTitle:  "Malformed Dataset",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "api error",
			err:        NotFoundError("query"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantTitle:  "Not Found",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "payload too large",
			err:        &http.MaxBytesError{Limit: 1024},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
			wantTitle:  "Payload Too Large",
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "generic error",
			err:        fmt.Errorf("something went wrong"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantTitle:  "Internal Server Error",
			wantLevel:  slog.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-1"))

			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, tt.wantTitle, body["title"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/dashboard", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			testutil.AssertLogContains(t, logHandler, tt.wantLevel, "request failed")
		})
	}
}

func TestUnclassifiedErrorIsInternalServerError(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)

	p := handler.ErrorToProblem(fmt.Errorf("disk on fire"), r)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.Equal(t, TypeInternal, p.Type)
	assert.Equal(t, ErrInternalServer.ErrorCode, p.Extensions["error_code"])
	assert.Equal(t, ErrInternalServer.Message, p.Detail)
	assert.NotContains(t, p.Detail, "disk on fire")
}

func TestHandleErrorNil(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	w := httptest.NewRecorder()
	NewErrorHandler(logger, false).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, w.Body.Len())
	assert.Equal(t, 0, logHandler.Count())
}

func TestValidationProblemListsFields(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard?top_n=4", nil)

	p := handler.ErrorToProblem(fieldErr{[]ValidationError{
		{Field: "top_n", Message: "must be between 5 and 50"},
		{Field: "schedule[0]", Message: `unknown drug schedule "x"`},
	}}, r)

	require.Equal(t, http.StatusBadRequest, p.Status)
	fields, ok := p.Extensions["errors"].([]ValidationError)
	require.True(t, ok)
	assert.Len(t, fields, 2)
	assert.Equal(t, "top_n", fields[0].Field)
}

func TestSourceProblemLocation(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)

	err := fmt.Errorf("reload: %w", &dataprocessing.SourceError{
		Kind:   dataprocessing.ErrMalformedSource,
		Path:   "/srv/data/stock.xlsx",
		Row:    12,
		Column: "Date",
		Err:    fmt.Errorf("unparseable date %q", "31/31/2024"),
	})
	p := handler.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Equal(t, "stock.xlsx", p.Extensions["source"])
	assert.Equal(t, 12, p.Extensions["row"])
	assert.Equal(t, "Date", p.Extensions["column"])
	assert.Contains(t, p.Detail, "row 12")
}

func TestAPIErrorProblemTypes(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	tests := []struct {
		err      *APIError
		wantType string
	}{
		{InvalidRequestWithError(fmt.Errorf("eof")), TypeValidation},
		{ErrRateLimitExceeded, TypeRateLimit},
		{ErrServiceUnavailable, TypeServiceDown},
		{ErrExportFailed, TypeExportFailed},
		{ErrWebSocketUpgrade, TypeWebSocketUpgrade},
		{ErrInternalServer, TypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.ErrorCode, func(t *testing.T) {
			p := handler.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.err.StatusCode, p.Status)
			assert.Equal(t, tt.err.ErrorCode, p.Extensions["error_code"])
		})
	}
}

func TestStackOnlyForServerErrors(t *testing.T) {
	handler := NewErrorHandler(nil, true)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, w), "stack")

	w = httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), analytics.ErrInvalidWindow)
	assert.NotContains(t, decodeProblem(t, w), "stack")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	handler := NewErrorHandler(nil, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/dashboard", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeMethodNotAllow, body["type"])
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", body["detail"])
}
