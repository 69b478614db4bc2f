package table

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/robolake/robolake/pkg/types"
)

func testSchema() types.TableSchema {
	return types.TableSchema{
		Columns: []types.ColumnSchema{
			{Name: "topic", Type: types.TypeString},
			{Name: "timestamp", Type: types.TypeFloat64},
			{Name: "accel_x", Type: types.TypeFloat64, Nullable: true},
			{Name: "ranges", Type: types.TypeJSONText, Nullable: true},
		},
	}
}

func testRows() []types.ProjectedRow {
	return []types.ProjectedRow{
		{"/imu/data", 1.0, 0.1, "[1,2,3]"},
		{"/imu/data", 2.0, nil, nil},
	}
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{FormatSQLite, FormatCSV, FormatJSON} {
		if _, err := ForFormat(format); err != nil {
			t.Errorf("format %s rejected: %v", format, err)
		}
		if !ValidFormat(format) {
			t.Errorf("format %s reported invalid", format)
		}
	}
	if _, err := ForFormat("parquet"); err == nil {
		t.Error("unknown format accepted")
	}
	if ValidFormat("parquet") {
		t.Error("unknown format reported valid")
	}
}

func TestSQLiteWriter_WriteAndReadBack(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.sqlite")

	w := &SQLiteWriter{}
	path, err := w.Write(context.Background(), dest, testSchema(), testRows())
	if err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	if path != dest {
		t.Errorf("artifact path mismatch: got %s", path)
	}

	db, err := sql.Open("sqlite3", "file:"+dest+"?mode=ro")
	if err != nil {
		t.Fatalf("failed to reopen artifact: %v", err)
	}
	defer db.Close()

	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + ArtifactTable).Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("row count mismatch: got %d, want 2", count)
	}

	var topic string
	var accel sql.NullFloat64
	row := db.QueryRow(`SELECT "topic", "accel_x" FROM records WHERE "timestamp" = 2.0`)
	if err := row.Scan(&topic, &accel); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}
	if topic != "/imu/data" {
		t.Errorf("topic mismatch: got %s", topic)
	}
	if accel.Valid {
		t.Error("missing accel_x should be NULL")
	}
}

func TestSQLiteWriter_NoWALLeftovers(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.sqlite")

	w := &SQLiteWriter{}
	if _, err := w.Write(context.Background(), dest, testSchema(), testRows()); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	// The artifact must be a single portable file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(dest + suffix); !os.IsNotExist(err) {
			t.Errorf("leftover sidecar file %s%s", dest, suffix)
		}
	}
}

func TestSQLiteWriter_ReplacesExistingArtifact(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.sqlite")
	if err := os.WriteFile(dest, []byte("stale partial write"), 0644); err != nil {
		t.Fatalf("failed to seed stale file: %v", err)
	}

	w := &SQLiteWriter{}
	if _, err := w.Write(context.Background(), dest, testSchema(), testRows()); err != nil {
		t.Fatalf("failed to replace stale artifact: %v", err)
	}

	db, err := sql.Open("sqlite3", dest)
	if err != nil {
		t.Fatalf("failed to reopen artifact: %v", err)
	}
	defer db.Close()
	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		t.Fatalf("stale content survived: %v", err)
	}
}

func TestSQLiteWriter_EmptyTable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.sqlite")

	w := &SQLiteWriter{}
	if _, err := w.Write(context.Background(), dest, types.BaselineSchema(), nil); err != nil {
		t.Fatalf("failed to write empty table: %v", err)
	}

	db, err := sql.Open("sqlite3", dest)
	if err != nil {
		t.Fatalf("failed to reopen artifact: %v", err)
	}
	defer db.Close()
	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("empty table has %d rows", count)
	}
}

func TestCSVWriter_WriteAndReadBack(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.csv")

	w := &CSVWriter{}
	if _, err := w.Write(context.Background(), dest, testSchema(), testRows()); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	file, err := os.Open(dest)
	if err != nil {
		t.Fatalf("failed to reopen artifact: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != "topic,timestamp,accel_x,ranges" {
		t.Errorf("header mismatch: %v", records[0])
	}
	if records[1][2] != "0.1" {
		t.Errorf("accel_x mismatch: got %q", records[1][2])
	}
	if records[2][2] != "" {
		t.Errorf("NULL should render empty: got %q", records[2][2])
	}
}

func TestJSONWriter_WriteAndReadBack(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.json")

	w := &JSONWriter{}
	if _, err := w.Write(context.Background(), dest, testSchema(), testRows()); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["topic"] != "/imu/data" {
		t.Errorf("topic mismatch: %v", rows[0]["topic"])
	}
	// json_text columns embed as real arrays, not escaped strings.
	arr, ok := rows[0]["ranges"].([]any)
	if !ok {
		t.Fatalf("ranges not embedded as array: %T", rows[0]["ranges"])
	}
	if len(arr) != 3 {
		t.Errorf("ranges length mismatch: %v", arr)
	}
	if rows[1]["accel_x"] != nil {
		t.Errorf("NULL should render as JSON null: %v", rows[1]["accel_x"])
	}
}

func TestSidecar_RoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "imu.sqlite")
	if err := os.WriteFile(dest, []byte("artifact bytes"), 0644); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}

	schema := testSchema()
	meta := &MetadataSidecar{
		TableName:   "lab_imu_data",
		SourceFile:  "lab.rlog",
		Topic:       "/imu/data",
		Schema:      schema,
		Fingerprint: schema.Fingerprint(),
		RowCount:    2,
	}
	if err := WriteSidecar(dest, meta); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}

	got, err := ReadSidecar(dest)
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	if got.TableName != meta.TableName {
		t.Errorf("table name mismatch: %s", got.TableName)
	}
	if got.Fingerprint != schema.Fingerprint() {
		t.Errorf("fingerprint mismatch: %s", got.Fingerprint)
	}
	if got.SizeBytes != int64(len("artifact bytes")) {
		t.Errorf("size mismatch: %d", got.SizeBytes)
	}
	if got.CreatedAt == 0 {
		t.Error("creation time not stamped")
	}
	if len(got.Schema.Columns) != len(schema.Columns) {
		t.Errorf("schema column count mismatch: %d", len(got.Schema.Columns))
	}
}
