package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robolake/robolake/pkg/types"
)

// ArtifactTable is the name of the data table inside a SQLite artifact.
// The query facade attaches the artifact and exposes it under the
// registered table name.
const ArtifactTable = "records"

// SQLiteWriter writes a table as a single immutable SQLite database file.
// This is the artifact encoding the catalog's query engine can attach
// directly, without an import step.
type SQLiteWriter struct{}

// Write creates the SQLite artifact at dest.
func (w *SQLiteWriter) Write(ctx context.Context, dest string, schema types.TableSchema, rows []types.ProjectedRow) (string, error) {
	if len(schema.Columns) == 0 {
		return "", fmt.Errorf("table: cannot write artifact with empty schema")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("table: failed to create output directory: %w", err)
	}
	// A previous partial write must not leak into the new artifact.
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("table: failed to replace existing artifact: %w", err)
	}

	db, err := sql.Open("sqlite3", dest)
	if err != nil {
		return "", fmt.Errorf("table: failed to create SQLite artifact: %w", err)
	}
	defer db.Close()

	// WAL during the build for write throughput.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return "", fmt.Errorf("table: failed to set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL(schema)); err != nil {
		return "", fmt.Errorf("table: failed to create records table: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSQL(schema))
	if err != nil {
		return "", fmt.Errorf("table: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("table: failed to begin insert transaction: %w", err)
	}
	txStmt := tx.StmtContext(ctx, stmt)
	for _, row := range rows {
		args := make([]any, len(schema.Columns))
		for i := range schema.Columns {
			args[i] = bindValue(row[i])
		}
		if _, err := txStmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return "", fmt.Errorf("table: failed to insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("table: failed to commit rows: %w", err)
	}

	// Checkpoint WAL and switch to DELETE mode so the artifact is a single
	// immutable file.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("table: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return "", fmt.Errorf("table: failed to set journal mode to DELETE: %w", err)
	}

	if err := db.Close(); err != nil {
		return "", fmt.Errorf("table: failed to close artifact: %w", err)
	}
	return dest, nil
}

// createTableSQL renders the CREATE TABLE statement for a unified schema.
func createTableSQL(schema types.TableSchema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(ArtifactTable)
	b.WriteString(" (")
	for i, col := range schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col.Name))
		b.WriteByte(' ')
		b.WriteString(col.Type.SQLiteType())
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	return b.String()
}

// insertSQL renders the prepared INSERT for a unified schema.
func insertSQL(schema types.TableSchema) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ArtifactTable)
	b.WriteString(" (")
	for i, col := range schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col.Name))
	}
	b.WriteString(") VALUES (")
	for i := range schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteString(")")
	return b.String()
}

// quoteIdent quotes a column identifier. Column paths contain dots, so every
// identifier is quoted rather than validated.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// bindValue converts a projected value into a driver-bindable value.
func bindValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case types.JSONText:
		return string(val)
	default:
		return val
	}
}
