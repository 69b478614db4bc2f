// Package integration provides end-to-end integration tests for RoboLake:
// recording → conversion → catalog registration → SQL query.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robolake/robolake/internal/catalog"
	"github.com/robolake/robolake/internal/convert"
	"github.com/robolake/robolake/internal/source"
	"github.com/robolake/robolake/internal/storage"
	"github.com/robolake/robolake/internal/table"
)

const labRecording = `{"topic":"/imu/data","type":"sensor_msgs/msg/Imu","time":1000000000,"data":{"linear_acceleration":{"x":1.0,"y":0.0,"z":9.8},"angular_velocity":{"x":0.0,"y":0.0,"z":0.1}}}
{"topic":"/odom","type":"nav_msgs/msg/Odometry","time":1500000000,"data":{"header":{"stamp":{"sec":1,"nanosec":500000000}},"twist":{"linear":{"x":0.5}}}}
{"topic":"/imu/data","type":"sensor_msgs/msg/Imu","time":2000000000,"data":{"linear_acceleration":{"x":-0.5,"y":0.0,"z":9.7},"angular_velocity":{"x":0.0,"y":0.0,"z":0.2}}}
not a json line
{"topic":"/imu/data","type":"sensor_msgs/msg/Imu","time":3000000000,"data":{"angular_velocity":{"x":0.0,"y":0.0,"z":0.3}}}
`

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lab.rlog")
	if err := os.WriteFile(path, []byte(labRecording), 0644); err != nil {
		t.Fatalf("failed to write recording: %v", err)
	}
	return path
}

// TestConvertFlow tests the end-to-end flow: recording file → per-channel
// conversion → catalog registration → SQL over the registered set.
func TestConvertFlow(t *testing.T) {
	ctx := context.Background()

	recording := writeRecording(t)
	root := filepath.Join(t.TempDir(), "lake")

	if err := catalog.Init(root, false); err != nil {
		t.Fatalf("failed to init catalog: %v", err)
	}
	cat, err := catalog.Open(root)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	defer cat.Close()

	src, err := source.OpenLog(recording)
	if err != nil {
		t.Fatalf("failed to open recording: %v", err)
	}
	defer src.Close()

	report, err := convert.Run(ctx, src, recording, convert.Options{Catalog: cat})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(report.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(report.Channels))
	}
	if report.Converted() != 4 {
		t.Errorf("converted count mismatch: %d", report.Converted())
	}
	if report.Skipped() != 1 {
		t.Errorf("skipped count mismatch: %d", report.Skipped())
	}
	for _, cr := range report.Channels {
		if cr.Err != nil {
			t.Fatalf("channel %s failed: %v", cr.Topic, cr.Err)
		}
		if !cr.Registered {
			t.Errorf("channel %s not registered", cr.Topic)
		}
	}

	entries, err := cat.List(ctx)
	if err != nil {
		t.Fatalf("failed to list catalog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(entries))
	}
	if entries[0].TableName != "lab_imu_data" || entries[1].TableName != "lab_odom" {
		t.Errorf("table names mismatch: %s, %s", entries[0].TableName, entries[1].TableName)
	}

	// The IMU channel: three rows, with the third missing acceleration.
	rows, err := cat.Query(ctx, `SELECT "accel_x" FROM lab_imu_data ORDER BY "timestamp"`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	var got []any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			t.Fatalf("failed to read row: %v", err)
		}
		got = append(got, values[0])
	}
	rows.Close()

	want := []any{1.0, -0.5, nil}
	if len(got) != len(want) {
		t.Fatalf("row count mismatch: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("accel_x[%d]: got %v, want %v", i, got[i], want[i])
		}
	}

	// Cross-channel query: the odometry channel carries header_timestamp.
	rows, err = cat.Query(ctx, `
		SELECT (SELECT COUNT(*) FROM lab_imu_data), "header_timestamp" FROM lab_odom`)
	if err != nil {
		t.Fatalf("cross-channel query failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("cross-channel query produced no rows")
	}
	values, err := rows.Values()
	if err != nil {
		t.Fatalf("failed to read row: %v", err)
	}
	if values[0] != int64(3) {
		t.Errorf("imu row count mismatch: %v", values[0])
	}
	if values[1] != 1.5 {
		t.Errorf("header_timestamp mismatch: %v", values[1])
	}
}

// TestPublishAndQueryRemote tests conversion with artifact publication: the
// catalog records a remote physical path and the query facade stages the
// artifact back before attaching it.
func TestPublishAndQueryRemote(t *testing.T) {
	ctx := context.Background()

	recording := writeRecording(t)
	root := filepath.Join(t.TempDir(), "lake")
	if err := catalog.Init(root, false); err != nil {
		t.Fatalf("failed to init catalog: %v", err)
	}
	cat, err := catalog.Open(root)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	defer cat.Close()

	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	src, err := source.OpenLog(recording)
	if err != nil {
		t.Fatalf("failed to open recording: %v", err)
	}
	defer src.Close()

	report, err := convert.Run(ctx, src, recording, convert.Options{
		Catalog:       cat,
		Topics:        []string{"/imu/data"},
		Store:         store,
		PublishBucket: "lake-bucket",
		PublishPrefix: "tables",
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if report.Channels[0].Err != nil {
		t.Fatalf("channel failed: %v", report.Channels[0].Err)
	}

	entry, err := cat.Get(ctx, "lab_imu_data")
	if err != nil {
		t.Fatalf("table not registered: %v", err)
	}
	if !storage.IsRemote(entry.PhysicalPath) {
		t.Fatalf("physical path not remote: %s", entry.PhysicalPath)
	}

	rows, err := cat.QueryWithOptions(ctx, "SELECT COUNT(*) FROM lab_imu_data",
		catalog.QueryOptions{Store: store})
	if err != nil {
		t.Fatalf("remote-backed query failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("count query produced no rows")
	}
	values, err := rows.Values()
	if err != nil {
		t.Fatalf("failed to read row: %v", err)
	}
	if values[0] != int64(3) {
		t.Errorf("count mismatch: %v", values[0])
	}
}

// TestStandaloneArtifact tests catalog-free conversion to a single artifact
// with its metadata sidecar.
func TestStandaloneArtifact(t *testing.T) {
	ctx := context.Background()

	recording := writeRecording(t)
	dest := filepath.Join(t.TempDir(), "imu.csv")

	src, err := source.OpenLog(recording)
	if err != nil {
		t.Fatalf("failed to open recording: %v", err)
	}
	defer src.Close()

	report, err := convert.Run(ctx, src, recording, convert.Options{
		OutputPath: dest,
		Format:     table.FormatCSV,
		Topics:     []string{"/imu/data"},
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if report.Channels[0].ArtifactPath != dest {
		t.Errorf("artifact path mismatch: %s", report.Channels[0].ArtifactPath)
	}

	meta, err := table.ReadSidecar(dest)
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	if meta.TableName != "lab_imu_data" || meta.RowCount != 3 {
		t.Errorf("sidecar mismatch: %+v", meta)
	}
}
