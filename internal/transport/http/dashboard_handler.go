package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pharmstock/internal/errors"
	"pharmstock/internal/services"
)

// DashboardHandler serves the dashboard and its individual tables.
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetDashboard)
	r.Get("/{query}", h.GetTable)
	return r
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "Dashboard served",
		slog.String("status", dashboard.Status),
		slog.String("period", dashboard.Selection.Period),
		slog.Int("requests", dashboard.Summary.Requests))
	render.JSON(w, r, dashboard)
}

// GetTable handles GET /api/dashboard/{query}
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
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
	render.JSON(w, r, table)
}

// unknownQuery turns ErrUnknownQuery into a 404 and passes anything else through.
func unknownQuery(err error) error {
	if errors.Is(err, services.ErrUnknownQuery) {
		return apierrors.NotFoundError("dashboard query")
	}
	return err
}
