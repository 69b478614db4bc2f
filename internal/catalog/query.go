package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	rlerrors "github.com/robolake/robolake/internal/errors"
	"github.com/robolake/robolake/internal/storage"
	"github.com/robolake/robolake/internal/table"
)

// QueryOptions configures the query facade.
type QueryOptions struct {
	// Store fetches remote artifacts. Required only when the catalog holds
	// entries with remote physical paths.
	Store storage.ObjectStorage

	// StagingDir receives fetched remote artifacts. Defaults to a temp dir
	// removed when the result set is closed.
	StagingDir string
}

// Rows is a lazy, finite, non-restartable sequence of query result rows.
// Close must be called to release the engine and any staged downloads.
type Rows struct {
	db      *sql.DB
	rows    *sql.Rows
	columns []string
	staging string
}

// Query opens every registered table as a named relation in an embedded
// SQLite engine and executes sql read-only against the set. Queries never
// mutate catalog state; a table being re-registered concurrently may be
// observed as either its old or new entry.
func (c *Catalog) Query(ctx context.Context, sqlText string) (*Rows, error) {
	return c.QueryWithOptions(ctx, sqlText, QueryOptions{})
}

// QueryWithOptions executes sql with explicit facade options.
func (c *Catalog) QueryWithOptions(ctx context.Context, sqlText string, opts QueryOptions) (*Rows, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open query engine: %w", err)
	}
	// The loaded tables and the query_only pragma must live on one
	// connection; an in-memory database is per-connection state.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	staging := opts.StagingDir
	ownStaging := false
	cleanup := func() {
		db.Close()
		if ownStaging && staging != "" {
			os.RemoveAll(staging)
		}
	}

	// Stage every remote artifact before attaching anything, so the fetcher
	// can download them in parallel.
	attachPaths := make([]string, len(entries))
	var fetches []storage.Fetch
	for i, entry := range entries {
		path := entry.PhysicalPath
		if !storage.IsRemote(path) {
			attachPaths[i] = path
			continue
		}
		if opts.Store == nil {
			cleanup()
			return nil, rlerrors.NewQueryError(
				fmt.Sprintf("table %q lives at %s but no object storage is configured", entry.TableName, path), nil)
		}
		_, key, ok := storage.SplitRemote(path)
		if !ok {
			cleanup()
			return nil, rlerrors.NewQueryError(
				fmt.Sprintf("table %q has malformed physical path %s", entry.TableName, path), nil)
		}
		if staging == "" {
			staging, err = os.MkdirTemp("", "robolake-staging-*")
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("catalog: failed to create staging dir: %w", err)
			}
			ownStaging = true
		}
		attachPaths[i] = filepath.Join(staging, filepath.Base(key))
		fetches = append(fetches, storage.Fetch{Key: key, LocalPath: attachPaths[i]})
		log.Printf("catalog: staging %s for table %s", path, entry.TableName)
	}

	if len(fetches) > 0 {
		fetched := storage.NewStagingFetcher(opts.Store, len(fetches)).FetchAll(ctx, fetches)
		if len(fetched.Errors) > 0 {
			cleanup()
			var key string
			var ferr error
			for key, ferr = range fetched.Errors {
				break
			}
			return nil, rlerrors.NewStorageError(rlerrors.CodeDownloadFailed,
				fmt.Sprintf("failed to stage artifact %s", key), ferr)
		}
	}

	for i, entry := range entries {
		if err := loadEntry(ctx, db, entry.TableName, attachPaths[i]); err != nil {
			cleanup()
			return nil, err
		}
	}

	// The facade is read-only by contract.
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		cleanup()
		return nil, fmt.Errorf("catalog: failed to enforce read-only mode: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		cleanup()
		return nil, rlerrors.NewQueryError("query rejected by engine", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		cleanup()
		return nil, rlerrors.NewQueryError("failed to read result columns", err)
	}

	result := &Rows{db: db, rows: rows, columns: columns}
	if ownStaging {
		result.staging = staging
	}
	return result, nil
}

// loadEntry copies one artifact's rows into the engine under the registered
// table name. Attach, copy, detach holds at most one attachment at a time,
// so the catalog size is never bounded by SQLite's attached-database limit.
func loadEntry(ctx context.Context, db *sql.DB, tableName, path string) error {
	attach := fmt.Sprintf("ATTACH DATABASE %s AS src",
		quoteString("file:"+path+"?mode=ro"))
	if _, err := db.ExecContext(ctx, attach); err != nil {
		return rlerrors.NewQueryError(fmt.Sprintf("failed to attach table %q", tableName), err)
	}

	load := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM src.%s",
		quoteIdent(tableName), table.ArtifactTable)
	if _, err := db.ExecContext(ctx, load); err != nil {
		db.ExecContext(ctx, "DETACH DATABASE src")
		return rlerrors.NewQueryError(fmt.Sprintf("failed to load table %q", tableName), err)
	}

	if _, err := db.ExecContext(ctx, "DETACH DATABASE src"); err != nil {
		return rlerrors.NewQueryError(fmt.Sprintf("failed to detach table %q", tableName), err)
	}
	return nil
}

// Columns returns the result column names.
func (r *Rows) Columns() []string {
	return r.columns
}

// Next advances to the next result row.
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Values returns the current row's values in column order.
func (r *Rows) Values() ([]any, error) {
	values := make([]any, len(r.columns))
	dest := make([]any, len(r.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		return nil, rlerrors.NewQueryError("failed to scan result row", err)
	}
	return values, nil
}

// Err returns any error encountered during iteration.
func (r *Rows) Err() error {
	return r.rows.Err()
}

// Close releases the result set, the engine, and any staged downloads.
func (r *Rows) Close() error {
	r.rows.Close()
	err := r.db.Close()
	if r.staging != "" {
		os.RemoveAll(r.staging)
	}
	return err
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString quotes an SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
