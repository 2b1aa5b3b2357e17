package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"pharmstock/pkg/contracts/domain"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Sheet       string
	DateLayouts []string
}

// Loader reads a source file and normalizes every row into a Table.
type Loader struct {
	opts       LoaderOptions
	normalizer Normalizer
	logger     *slog.Logger
}

// NewLoader creates a Loader. A nil logger falls back to slog.Default().
func NewLoader(logger *slog.Logger, opts LoaderOptions) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		opts:       opts,
		normalizer: Normalizer{DateLayouts: opts.DateLayouts},
		logger:     logger.With(slog.String("component", "loader")),
	}
}

// Load reads path with default options.
func Load(ctx context.Context, path string) (*Table, error) {
	return NewLoader(nil, LoaderOptions{}).Load(ctx, path)
}

// Load reads and normalizes the whole source. The load is all-or-nothing.
func (l *Loader) Load(ctx context.Context, path string) (*Table, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &SourceError{Kind: ErrSourceNotFound, Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &SourceError{Kind: ErrSourceNotFound, Path: path, Err: errors.New("path is a directory")}
	}

	raws, err := ReadSource(ctx, path, ReadOptions{Sheet: l.opts.Sheet})
	if err != nil {
		return nil, withPath(err, path)
	}

	records := make([]domain.StockRecord, len(raws))
	for i, raw := range raws {
		rec, err := l.normalizer.Normalize(raw)
		if err != nil {
			return nil, withPath(err, path)
		}
		records[i] = rec
	}

	table := NewTable(path, records)
	l.logger.InfoContext(ctx, "Dataset loaded",
		slog.String("source", path),
		slog.Int("rows", table.Len()),
		slog.Time("min_date", table.MinDate()),
		slog.Time("max_date", table.MaxDate()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func withPath(err error, path string) error {
	var se *SourceError
	if errors.As(err, &se) && se.Path == "" {
		se.Path = path
	}
	return err
}
