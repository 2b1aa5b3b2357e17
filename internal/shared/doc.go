// Package shared holds helpers used across packages that belong to no single
// layer. Its testutil subpackage provides a buffered slog handler for log
// assertions and stock request workbook fixtures.
package shared
