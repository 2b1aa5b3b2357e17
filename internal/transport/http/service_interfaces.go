package http

import (
	"context"

	"pharmstock/internal/exporter"
	"pharmstock/internal/services"
)

// DashboardServiceInterface is the part of *services.DashboardService the
// handlers use.
type DashboardServiceInterface interface {
	Dashboard(ctx context.Context, q services.DashboardQuery) (*services.Dashboard, error)
	Table(ctx context.Context, name services.QueryName, q services.DashboardQuery) (*services.QueryTable, error)
	Sheets(ctx context.Context, q services.DashboardQuery) ([]exporter.Sheet, error)
}

// DatasetServiceInterface exposes the loaded dataset.
type DatasetServiceInterface interface {
	Dataset(ctx context.Context) (services.DatasetInfo, error)
	Options(ctx context.Context) (*services.DatasetOptions, error)
	Reload(ctx context.Context) (services.DatasetInfo, error)
}
