package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStagingFetcher_FetchAll(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "artifact")
	for _, key := range []string{"tables/a.sqlite", "tables/b.sqlite", "tables/c.sqlite"} {
		if err := store.Upload(ctx, src, key); err != nil {
			t.Fatalf("upload %s failed: %v", key, err)
		}
	}

	staging := t.TempDir()
	fetches := []Fetch{
		{Key: "tables/a.sqlite", LocalPath: filepath.Join(staging, "a.sqlite")},
		{Key: "tables/b.sqlite", LocalPath: filepath.Join(staging, "b.sqlite")},
		{Key: "tables/c.sqlite", LocalPath: filepath.Join(staging, "c.sqlite")},
	}

	result := NewStagingFetcher(store, 2).FetchAll(ctx, fetches)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected fetch errors: %v", result.Errors)
	}
	if result.Staged != 3 {
		t.Errorf("staged count mismatch: %d", result.Staged)
	}
	for _, fetch := range fetches {
		if _, err := os.Stat(fetch.LocalPath); err != nil {
			t.Errorf("staged file missing: %s", fetch.LocalPath)
		}
	}
}

func TestStagingFetcher_ReusesStagedFiles(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "artifact")
	if err := store.Upload(ctx, src, "tables/a.sqlite"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	staged := filepath.Join(t.TempDir(), "a.sqlite")
	if err := os.WriteFile(staged, []byte("already here"), 0644); err != nil {
		t.Fatalf("failed to pre-stage: %v", err)
	}

	result := NewStagingFetcher(store, 1).FetchAll(ctx, []Fetch{
		{Key: "tables/a.sqlite", LocalPath: staged},
	})
	if result.CacheHits != 1 || result.Staged != 0 {
		t.Errorf("pre-staged file fetched again: %+v", result)
	}
	data, _ := os.ReadFile(staged)
	if string(data) != "already here" {
		t.Error("pre-staged file overwritten")
	}
}

func TestStagingFetcher_CollectsPerKeyFailures(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	src := seedFile(t, "artifact")
	if err := store.Upload(ctx, src, "tables/good.sqlite"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	staging := t.TempDir()
	result := NewStagingFetcher(store, 2).FetchAll(ctx, []Fetch{
		{Key: "tables/good.sqlite", LocalPath: filepath.Join(staging, "good.sqlite")},
		{Key: "tables/missing.sqlite", LocalPath: filepath.Join(staging, "missing.sqlite")},
	})

	if result.Staged != 1 {
		t.Errorf("staged count mismatch: %d", result.Staged)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 failure, got %v", result.Errors)
	}
	if _, ok := result.Errors["tables/missing.sqlite"]; !ok {
		t.Errorf("failure not attributed to missing key: %v", result.Errors)
	}
}
