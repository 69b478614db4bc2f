// Package table persists unified channel tables as physical artifacts.
// One Writer implementation exists per output encoding; the conversion core
// does not depend on which encoding is chosen.
package table

import (
	"context"
	"fmt"

	"github.com/robolake/robolake/pkg/types"
)

// Supported output formats.
const (
	FormatSQLite = "sqlite"
	FormatCSV    = "csv"
	FormatJSON   = "json"
)

// Writer persists one rectangular table and returns the artifact path.
type Writer interface {
	// Write encodes schema and rows into a single artifact at dest.
	Write(ctx context.Context, dest string, schema types.TableSchema, rows []types.ProjectedRow) (string, error)
}

// ForFormat returns the writer for an output format selector.
func ForFormat(format string) (Writer, error) {
	switch format {
	case FormatSQLite:
		return &SQLiteWriter{}, nil
	case FormatCSV:
		return &CSVWriter{}, nil
	case FormatJSON:
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("table: unknown output format %q (must be sqlite, csv, or json)", format)
	}
}

// Extension returns the file extension for an output format, dot included.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".sqlite"
	}
}

// ValidFormat reports whether format names a supported encoding.
func ValidFormat(format string) bool {
	switch format {
	case FormatSQLite, FormatCSV, FormatJSON:
		return true
	}
	return false
}
