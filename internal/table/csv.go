package table

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/robolake/robolake/pkg/types"
)

// CSVWriter writes a table as delimited text with a header row.
// NULL renders as an empty field.
type CSVWriter struct{}

// Write creates the CSV artifact at dest.
func (w *CSVWriter) Write(ctx context.Context, dest string, schema types.TableSchema, rows []types.ProjectedRow) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("table: failed to create output directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("table: failed to create CSV artifact: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(schema.ColumnNames()); err != nil {
		return "", fmt.Errorf("table: failed to write CSV header: %w", err)
	}

	record := make([]string, len(schema.Columns))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for i := range schema.Columns {
			record[i] = formatField(row[i])
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("table: failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("table: failed to flush CSV: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("table: failed to close CSV artifact: %w", err)
	}
	return dest, nil
}

// formatField renders one projected value as a CSV field.
func formatField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	case types.JSONText:
		return string(val)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
