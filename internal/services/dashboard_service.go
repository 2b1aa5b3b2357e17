package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pharmstock/internal/analytics"
	"pharmstock/internal/dataprocessing"
	"pharmstock/internal/infrastructure"
	"pharmstock/pkg/contracts/domain"
)

// Dashboard statuses.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
)

// EventDatasetReloaded is broadcast after a successful reload.
const EventDatasetReloaded = "dataset:reloaded"

const (
	noMatchMessage  = "No stock requests match the selected filters."
	emptySetMessage = "The dataset contains no stock requests."
)

// DatasetStore caches loaded tables. *dataprocessing.Repository implements it.
type DatasetStore interface {
	Get(ctx context.Context, path string) (*dataprocessing.Table, error)
	Reload(ctx context.Context, path string) (*dataprocessing.Table, error)
}

// QueryRecorder observes dashboard queries.
type QueryRecorder interface {
	RecordQuery(ctx context.Context, mode string, matched int, duration time.Duration, err error)
}

// Notifier pushes events to connected clients.
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// Defaults are applied to empty query fields.
type Defaults struct {
	Mode Mode
	TopN int
}

// DashboardService answers dashboard queries over a single dataset.
type DashboardService struct {
	store    DatasetStore
	source   string
	defaults Defaults
	validate *validator.Validate
	recorder QueryRecorder
	notifier Notifier
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a DashboardService.
type Option func(*DashboardService)

// WithDefaults overrides the default mode and top-n.
func WithDefaults(d Defaults) Option {
	return func(s *DashboardService) {
		if d.Mode != "" {
			s.defaults.Mode = d.Mode
		}
		if d.TopN != 0 {
			s.defaults.TopN = d.TopN
		}
	}
}

// WithQueryRecorder attaches query metrics.
func WithQueryRecorder(r QueryRecorder) Option {
	return func(s *DashboardService) { s.recorder = r }
}

// WithNotifier attaches a reload notifier.
func WithNotifier(n Notifier) Option {
	return func(s *DashboardService) { s.notifier = n }
}

// NewDashboardService creates a service for the dataset at source.
func NewDashboardService(store DatasetStore, source string, logger *slog.Logger, opts ...Option) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DashboardService{
		store:    store,
		source:   source,
		defaults: Defaults{Mode: ModeMonthly, TopN: analytics.DefaultTopN},
		validate: newValidator(),
		tracer:   otel.Tracer("pharmstock/services"),
		logger:   infrastructure.WithComponent(logger, "dashboard_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DatasetInfo describes the loaded dataset.
type DatasetInfo struct {
	Source   string    `json:"source"`
	Rows     int       `json:"rows"`
	MinDate  string    `json:"min_date,omitempty"`
	MaxDate  string    `json:"max_date,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

func datasetInfo(t *dataprocessing.Table) DatasetInfo {
	info := DatasetInfo{Source: t.Source(), Rows: t.Len(), LoadedAt: t.LoadedAt()}
	if !t.Empty() {
		info.MinDate = t.MinDate().Format(time.DateOnly)
		info.MaxDate = t.MaxDate().Format(time.DateOnly)
	}
	return info
}

// TopNBounds describes the accepted top-n values.
type TopNBounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

// DatasetOptions lists the values a client can select.
type DatasetOptions struct {
	Modes        []Mode                  `json:"modes"`
	DefaultMode  Mode                    `json:"default_mode"`
	Destinations []string                `json:"destinations"`
	Schedules    []domain.DrugSchedule   `json:"schedules"`
	Weeks        []analytics.WeekOption  `json:"weeks"`
	Months       []analytics.MonthOption `json:"months"`
	MinDate      string                  `json:"min_date,omitempty"`
	MaxDate      string                  `json:"max_date,omitempty"`
	TopN         TopNBounds              `json:"top_n"`
}

// Dataset returns information about the cached dataset, loading it if needed.
func (s *DashboardService) Dataset(ctx context.Context) (DatasetInfo, error) {
	table, err := s.store.Get(ctx, s.source)
	if err != nil {
		return DatasetInfo{}, err
	}
	return datasetInfo(table), nil
}

// Options returns the selectable destinations, schedules and periods.
func (s *DashboardService) Options(ctx context.Context) (*DatasetOptions, error) {
	table, err := s.store.Get(ctx, s.source)
	if err != nil {
		return nil, err
	}
	info := datasetInfo(table)
	return &DatasetOptions{
		Modes:        []Mode{ModeDaily, ModeWeekly, ModeMonthly, ModeRange},
		DefaultMode:  s.defaults.Mode,
		Destinations: analytics.Destinations(table),
		Schedules:    analytics.ScheduleOptions(),
		Weeks:        analytics.Weeks(table),
		Months:       analytics.Months(table),
		MinDate:      info.MinDate,
		MaxDate:      info.MaxDate,
		TopN:         TopNBounds{Min: analytics.MinTopN, Max: analytics.MaxTopN, Default: s.defaults.TopN},
	}, nil
}

// Reload rereads the source and notifies clients. A failed reload keeps the
// previous dataset.
func (s *DashboardService) Reload(ctx context.Context) (DatasetInfo, error) {
	table, err := s.store.Reload(ctx, s.source)
	if err != nil {
		return DatasetInfo{}, err
	}
	info := datasetInfo(table)
	if s.notifier != nil {
		s.notifier.Broadcast(EventDatasetReloaded, info)
	}
	return info, nil
}

// Resolve validates q and fills its defaults from the dataset.
func (s *DashboardService) Resolve(ctx context.Context, q DashboardQuery) (Selection, error) {
	if err := validateQuery(s.validate, q); err != nil {
		return Selection{}, err
	}
	table, err := s.store.Get(ctx, s.source)
	if err != nil {
		return Selection{}, err
	}
	if table.Empty() {
		return Selection{Mode: s.modeOf(q), TopN: s.topNOf(q)}, nil
	}
	return resolve(table, q, s.defaults)
}

func (s *DashboardService) modeOf(q DashboardQuery) Mode {
	if q.Mode != "" {
		return Mode(q.Mode)
	}
	return s.defaults.Mode
}

func (s *DashboardService) topNOf(q DashboardQuery) int {
	if q.TopN != 0 {
		return q.TopN
	}
	return s.defaults.TopN
}

// selection is the shared front half of every query: validate, load, resolve, filter.
type selection struct {
	table   *dataprocessing.Table
	sel     Selection
	records []domain.StockRecord
}

func (s *DashboardService) selectRecords(ctx context.Context, q DashboardQuery) (*selection, error) {
	if err := validateQuery(s.validate, q); err != nil {
		return nil, err
	}
	table, err := s.store.Get(ctx, s.source)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return &selection{
			table:   table,
			sel:     Selection{Mode: s.modeOf(q), TopN: s.topNOf(q)},
			records: []domain.StockRecord{},
		}, nil
	}

	sel, err := resolve(table, q, s.defaults)
	if err != nil {
		return nil, err
	}
	records, err := analytics.Filter(table, sel.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return &selection{table: table, sel: sel, records: records}, nil
}

// observe wraps a query in a span and records its metrics.
func (s *DashboardService) observe(ctx context.Context, name string, q DashboardQuery, fn func(ctx context.Context) (*selection, error)) (*selection, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard."+name, trace.WithAttributes(
		attribute.String("dashboard.mode", string(s.modeOf(q))),
	))
	defer span.End()

	start := time.Now()
	res, err := fn(ctx)
	matched := 0
	if res != nil {
		matched = len(res.records)
	}
	if s.recorder != nil {
		s.recorder.RecordQuery(ctx, string(s.modeOf(q)), matched, time.Since(start), err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "Dashboard query failed",
			slog.String("query", name))
		return nil, err
	}
	span.SetAttributes(attribute.Int("dashboard.matched", matched))
	s.logger.DebugContext(ctx, "Dashboard query",
		slog.String("query", name),
		slog.String("mode", string(res.sel.Mode)),
		slog.String("period", res.sel.Period),
		slog.Int("matched", matched),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}
