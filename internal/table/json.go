package table

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/robolake/robolake/pkg/types"
)

// JSONWriter writes a table as a JSON array of records, one object per row,
// with NULLs rendered as JSON null. Serialized-array columns are embedded as
// raw JSON rather than re-escaped text.
type JSONWriter struct{}

// Write creates the JSON artifact at dest.
func (w *JSONWriter) Write(ctx context.Context, dest string, schema types.TableSchema, rows []types.ProjectedRow) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("table: failed to create output directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("table: failed to create JSON artifact: %w", err)
	}
	defer file.Close()

	out := bufio.NewWriter(file)
	names := schema.ColumnNames()

	if _, err := out.WriteString("[\n"); err != nil {
		return "", fmt.Errorf("table: failed to write JSON artifact: %w", err)
	}
	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r > 0 {
			if _, err := out.WriteString(",\n"); err != nil {
				return "", fmt.Errorf("table: failed to write JSON artifact: %w", err)
			}
		}
		if err := writeObject(out, schema, names, row); err != nil {
			return "", err
		}
	}
	if _, err := out.WriteString("\n]\n"); err != nil {
		return "", fmt.Errorf("table: failed to write JSON artifact: %w", err)
	}

	if err := out.Flush(); err != nil {
		return "", fmt.Errorf("table: failed to flush JSON artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("table: failed to close JSON artifact: %w", err)
	}
	return dest, nil
}

// writeObject encodes one row as a JSON object in schema order.
func writeObject(out *bufio.Writer, schema types.TableSchema, names []string, row types.ProjectedRow) error {
	if _, err := out.WriteString("  {"); err != nil {
		return fmt.Errorf("table: failed to write JSON row: %w", err)
	}
	for i, col := range schema.Columns {
		if i > 0 {
			if _, err := out.WriteString(", "); err != nil {
				return fmt.Errorf("table: failed to write JSON row: %w", err)
			}
		}
		key, err := json.Marshal(names[i])
		if err != nil {
			return fmt.Errorf("table: failed to encode column name: %w", err)
		}
		if _, err := out.Write(key); err != nil {
			return fmt.Errorf("table: failed to write JSON row: %w", err)
		}
		if _, err := out.WriteString(": "); err != nil {
			return fmt.Errorf("table: failed to write JSON row: %w", err)
		}

		var encoded []byte
		if text, ok := row[i].(types.JSONText); ok && col.Type == types.TypeJSONText {
			encoded = []byte(text)
		} else if text, ok := row[i].(string); ok && col.Type == types.TypeJSONText {
			encoded = []byte(text)
		} else {
			encoded, err = json.Marshal(row[i])
			if err != nil {
				return fmt.Errorf("table: failed to encode value for %s: %w", col.Name, err)
			}
		}
		if _, err := out.Write(encoded); err != nil {
			return fmt.Errorf("table: failed to write JSON row: %w", err)
		}
	}
	if _, err := out.WriteString("}"); err != nil {
		return fmt.Errorf("table: failed to write JSON row: %w", err)
	}
	return nil
}
