package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceNotFound is returned when the source path does not resolve to a readable file.
	ErrSourceNotFound = errors.New("source not found")
	// ErrMalformedSource is returned when a required column is missing, the file cannot be
	// decoded, or a date cannot be parsed.
	ErrMalformedSource = errors.New("malformed source")

	errMissingColumn     = errors.New("required column missing")
	errUnsupportedFormat = errors.New("unsupported file format")
	errMissingDate       = errors.New("date is empty")
)

// SourceError locates a load failure. Kind is ErrSourceNotFound or ErrMalformedSource.
type SourceError struct {
	Kind   error
	Path   string
	Row    int
	Column string
	Err    error
}

func (e *SourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(row int, column string, err error) *SourceError {
	return &SourceError{Kind: ErrMalformedSource, Row: row, Column: column, Err: err}
}
