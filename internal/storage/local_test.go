package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return store
}

func seedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.sqlite")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownloadRoundTrip(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "table bytes")
	if err := store.Upload(ctx, src, "tables/lab_imu_data.sqlite"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, "tables/lab_imu_data.sqlite")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatal("uploaded object not found")
	}

	dest := filepath.Join(t.TempDir(), "fetched.sqlite")
	if err := store.Download(ctx, "tables/lab_imu_data.sqlite", dest); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read download: %v", err)
	}
	if string(data) != "table bytes" {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestLocalStorage_DownloadMissingObject(t *testing.T) {
	store := newLocal(t)

	err := store.Download(context.Background(), "tables/missing.sqlite",
		filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "x")
	if err := store.Upload(ctx, src, "a.sqlite"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := store.Delete(ctx, "a.sqlite"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "a.sqlite"); err != nil {
		t.Fatalf("second delete not idempotent: %v", err)
	}

	exists, err := store.Exists(ctx, "a.sqlite")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("deleted object still exists")
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "x")
	for _, key := range []string{"tables/a.sqlite", "tables/b.sqlite", "other/c.sqlite"} {
		if err := store.Upload(ctx, src, key); err != nil {
			t.Fatalf("upload %s failed: %v", key, err)
		}
	}

	objects, err := store.ListObjects(ctx, "tables")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	sort.Strings(objects)
	want := []string{"tables/a.sqlite", "tables/b.sqlite"}
	if len(objects) != len(want) {
		t.Fatalf("object count mismatch: %v", objects)
	}
	for i := range want {
		if objects[i] != want[i] {
			t.Errorf("object %d: got %s, want %s", i, objects[i], want[i])
		}
	}

	empty, err := store.ListObjects(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("list of missing prefix failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("missing prefix returned objects: %v", empty)
	}
}

func TestRemotePathHelpers(t *testing.T) {
	if !IsRemote("s3://bucket/key") {
		t.Error("s3 path not detected as remote")
	}
	if IsRemote("/var/lake/tables/a.sqlite") {
		t.Error("local path detected as remote")
	}

	bucket, key, ok := SplitRemote("s3://lake-bucket/tables/a.sqlite")
	if !ok || bucket != "lake-bucket" || key != "tables/a.sqlite" {
		t.Errorf("split mismatch: %s %s %v", bucket, key, ok)
	}
	if _, _, ok := SplitRemote("s3://bucket-only"); ok {
		t.Error("keyless path accepted")
	}
	if _, _, ok := SplitRemote("http://example.com/x"); ok {
		t.Error("non-s3 path accepted")
	}

	if got := RemotePath("b", "/k/x"); got != "s3://b/k/x" {
		t.Errorf("remote path mismatch: %s", got)
	}
}
