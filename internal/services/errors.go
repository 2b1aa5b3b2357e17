package services

import (
	"errors"
	"strings"

	apierrors "pharmstock/internal/errors"
)

var (
	// ErrInvalidQuery wraps every rejected dashboard selection.
	ErrInvalidQuery = errors.New("invalid dashboard query")
	// ErrUnknownQuery is returned for a table name outside QueryNames.
	ErrUnknownQuery = errors.New("unknown dashboard query")
)

// QueryError lists the fields of a DashboardQuery that failed validation.
type QueryError struct {
	Fields []apierrors.ValidationError
}

func (e *QueryError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return ErrInvalidQuery.Error() + ": " + strings.Join(parts, "; ")
}

func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// FieldErrors exposes the rejected fields to the HTTP error mapper.
func (e *QueryError) FieldErrors() []apierrors.ValidationError { return e.Fields }

func invalidField(field, message string) *QueryError {
	return &QueryError{Fields: []apierrors.ValidationError{{Field: field, Message: message}}}
}
