// Package catalog manages the local table catalog: a metadata store mapping
// table names to physical artifacts and their schemas, plus the SQL query
// facade over the registered set.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	rlerrors "github.com/robolake/robolake/internal/errors"
	"github.com/robolake/robolake/internal/storage"
	"github.com/robolake/robolake/pkg/types"
)

// MetadataFile is the name of the metadata store inside a catalog root.
const MetadataFile = "catalog.db"

// TablesDirName is the directory under the catalog root holding artifacts.
const TablesDirName = "tables"

// Entry is one registered table. Entries are immutable; a forced
// re-registration under the same name replaces the entry wholesale.
type Entry struct {
	TableName    string
	SourceFile   string
	PhysicalPath string
	Schema       types.TableSchema
	Fingerprint  string
	RowCount     int64
	CreatedAt    time.Time
}

// RegisterSpec describes a registration request.
type RegisterSpec struct {
	TableName    string
	SourceFile   string
	PhysicalPath string
	Schema       types.TableSchema
	RowCount     int64

	// Overwrite permits replacing an existing entry under the same name.
	// Without it, a duplicate name fails with NAME_CONFLICT.
	Overwrite bool
}

// Catalog is the open handle on one catalog root. Writers to the same root
// are serialized through the write mutex and SQLite transactions; no
// cross-process lock beyond last-writer-wins is provided.
type Catalog struct {
	root string
	db   *sql.DB
	mu   sync.Mutex // Write-only lock

	upsertStmt *sql.Stmt
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tables (
	table_name    TEXT PRIMARY KEY,
	source_file   TEXT NOT NULL,
	physical_path TEXT NOT NULL,
	schema_json   TEXT NOT NULL,
	fingerprint   TEXT NOT NULL,
	row_count     INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
) WITHOUT ROWID`

// Init creates a catalog root and its metadata store. It fails with
// ALREADY_EXISTS unless force is set, in which case any existing catalog at
// that root is destroyed and recreated empty.
func Init(root string, force bool) error {
	metaPath := filepath.Join(root, MetadataFile)
	if _, err := os.Stat(metaPath); err == nil {
		if !force {
			return rlerrors.NewCatalogError(rlerrors.CodeAlreadyExists,
				fmt.Sprintf("catalog already exists at %s", root))
		}
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("catalog: failed to remove existing catalog: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Join(root, TablesDirName), 0755); err != nil {
		return fmt.Errorf("catalog: failed to create catalog root: %w", err)
	}

	c, err := open(root)
	if err != nil {
		return err
	}
	return c.Close()
}

// Open opens an existing catalog root. It fails with UNKNOWN_CATALOG when
// the root has no metadata store and was never initialized.
func Open(root string) (*Catalog, error) {
	metaPath := filepath.Join(root, MetadataFile)
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return nil, rlerrors.NewCatalogError(rlerrors.CodeUnknownCatalog,
			fmt.Sprintf("%s has no catalog metadata store", root))
	}
	return open(root)
}

// open opens (creating if necessary) the metadata store under root.
func open(root string) (*Catalog, error) {
	metaPath := filepath.Join(root, MetadataFile)
	db, err := sql.Open("sqlite3", metaPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open metadata store: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize metadata schema: %w", err)
	}

	upsert, err := db.Prepare(`
		INSERT OR REPLACE INTO tables (
			table_name, source_file, physical_path,
			schema_json, fingerprint, row_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare upsert statement: %w", err)
	}

	return &Catalog{root: root, db: db, upsertStmt: upsert}, nil
}

// Root returns the catalog root directory.
func (c *Catalog) Root() string {
	return c.root
}

// TablesDir returns the artifact directory under the catalog root.
func (c *Catalog) TablesDir() string {
	return filepath.Join(c.root, TablesDirName)
}

// Register records a table in the metadata store. The upsert runs in one
// transaction, so a reader observes either the old entry or the new one,
// never a partial write.
func (c *Catalog) Register(ctx context.Context, spec RegisterSpec) (*Entry, error) {
	if spec.TableName == "" {
		return nil, rlerrors.NewCatalogError(rlerrors.CodeInvalidSchema, "table name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	var previousPath string
	err = tx.QueryRowContext(ctx,
		"SELECT physical_path FROM tables WHERE table_name = ?", spec.TableName).Scan(&previousPath)
	switch {
	case err == nil:
		if !spec.Overwrite {
			return nil, rlerrors.NewCatalogError(rlerrors.CodeNameConflict,
				fmt.Sprintf("table %q is already registered", spec.TableName))
		}
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("catalog: failed to check table name: %w", err)
	}

	schemaJSON, err := json.Marshal(spec.Schema)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to encode schema: %w", err)
	}

	entry := &Entry{
		TableName:    spec.TableName,
		SourceFile:   spec.SourceFile,
		PhysicalPath: spec.PhysicalPath,
		Schema:       spec.Schema,
		Fingerprint:  spec.Schema.Fingerprint(),
		RowCount:     spec.RowCount,
		CreatedAt:    time.Now(),
	}

	if _, err := tx.StmtContext(ctx, c.upsertStmt).ExecContext(ctx,
		entry.TableName, entry.SourceFile, entry.PhysicalPath,
		string(schemaJSON), entry.Fingerprint, entry.RowCount, entry.CreatedAt.Unix(),
	); err != nil {
		return nil, fmt.Errorf("catalog: failed to register table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: failed to commit registration: %w", err)
	}

	// An overwrite leaves the previous artifact unreachable; the unique
	// suffix in artifact names means the new file never reuses its path.
	if previousPath != "" && previousPath != entry.PhysicalPath && !storage.IsRemote(previousPath) {
		if err := os.Remove(previousPath); err != nil && !os.IsNotExist(err) {
			log.Printf("catalog: failed to remove superseded artifact %s: %v", previousPath, err)
		}
	}
	return entry, nil
}

// Get retrieves a single entry by table name.
func (c *Catalog) Get(ctx context.Context, tableName string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT table_name, source_file, physical_path, schema_json, fingerprint, row_count, created_at
		FROM tables WHERE table_name = ?`, tableName)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, rlerrors.NewCatalogError(rlerrors.CodeTableNotFound,
			fmt.Sprintf("table %q is not registered", tableName))
	}
	return entry, err
}

// List returns every registered entry, ordered by table name.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name, source_file, physical_path, schema_json, fingerprint, row_count, created_at
		FROM tables ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list tables: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: failed to list tables: %w", err)
	}
	return entries, nil
}

// Remove deletes an entry and its local artifact.
func (c *Catalog) Remove(ctx context.Context, tableName string) error {
	entry, err := c.Get(ctx, tableName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx,
		"DELETE FROM tables WHERE table_name = ?", tableName); err != nil {
		return fmt.Errorf("catalog: failed to remove table: %w", err)
	}

	if !storage.IsRemote(entry.PhysicalPath) {
		if err := os.Remove(entry.PhysicalPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("catalog: failed to remove artifact: %w", err)
		}
	}
	return nil
}

// Close closes the metadata store.
func (c *Catalog) Close() error {
	if c.upsertStmt != nil {
		c.upsertStmt.Close()
	}
	return c.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry decodes one metadata row into an Entry.
func scanEntry(s scanner) (*Entry, error) {
	var (
		entry      Entry
		schemaJSON string
		createdAt  int64
	)
	if err := s.Scan(&entry.TableName, &entry.SourceFile, &entry.PhysicalPath,
		&schemaJSON, &entry.Fingerprint, &entry.RowCount, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schemaJSON), &entry.Schema); err != nil {
		return nil, fmt.Errorf("catalog: failed to decode stored schema: %w", err)
	}
	entry.CreatedAt = time.Unix(createdAt, 0)
	return &entry, nil
}
