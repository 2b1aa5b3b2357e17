package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "pharmstock/internal/errors"
	"pharmstock/internal/exporter"
	"pharmstock/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves dashboard tables as downloads.
type ExportHandler struct {
	service      DashboardServiceInterface
	csv          *exporter.CSVWriter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates an export handler.
func NewExportHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		csv:          exporter.NewCSVWriter(logger),
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dashboard.xlsx", h.ExportWorkbook)
	r.Get("/{query}.csv", h.ExportCSV)
	return r
}

// ExportCSV handles GET /api/export/{query}.csv
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	name, err := services.ParseQueryName(chi.URLParam(r, "query"))
	if err != nil {
		h.errorHandler.HandleError(w, r, unknownQuery(err))
		return
	}
	q, err := parseDashboardQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	table, err := h.service.Table(r.Context(), name, q)
	if err != nil {
		h.errorHandler.HandleError(w, r, unknownQuery(err))
		return
	}

	// Buffer so a write failure can still be reported as a problem.
	var buf bytes.Buffer
	if err := h.csv.Write(&buf, table.Sheet(), exporter.WriteOptions{BOMPrefix: true}); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ExportError("csv", err))
		return
	}
	h.send(w, r, buf.Bytes(), "text/csv; charset=utf-8", string(name)+".csv")
}

// ExportWorkbook handles GET /api/export/dashboard.xlsx
func (h *ExportHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sheets, err := h.service.Sheets(r.Context(), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteWorkbook(&buf, sheets); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ExportError("xlsx", err))
		return
	}
	h.send(w, r, buf.Bytes(), xlsxContentType, "dashboard.xlsx")
}

func (h *ExportHandler) send(w http.ResponseWriter, r *http.Request, body []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write export",
			slog.String("file", filename),
			slog.String("error", err.Error()))
		return
	}
	h.logger.InfoContext(r.Context(), "Export served",
		slog.String("file", filename),
		slog.Int("bytes", len(body)))
}
