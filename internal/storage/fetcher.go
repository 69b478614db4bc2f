package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Fetch describes one remote artifact to stage on the local filesystem.
type Fetch struct {
	Key       string
	LocalPath string
}

// FetchResult is the outcome of one staging pass.
type FetchResult struct {
	Staged    int
	CacheHits int
	Errors    map[string]error
}

// StagingFetcher downloads remote artifacts in parallel before the query
// engine attaches them. Artifacts already present at their staging path are
// reused rather than fetched again.
type StagingFetcher struct {
	store       ObjectStorage
	concurrency int
}

// NewStagingFetcher creates a fetcher over the given store.
func NewStagingFetcher(store ObjectStorage, concurrency int) *StagingFetcher {
	if concurrency < 1 {
		concurrency = 4
	}
	return &StagingFetcher{store: store, concurrency: concurrency}
}

// FetchAll stages every requested artifact. Failures are collected per key;
// a failure on one artifact does not stop the others.
func (f *StagingFetcher) FetchAll(ctx context.Context, fetches []Fetch) *FetchResult {
	result := &FetchResult{Errors: make(map[string]error)}

	var queue []Fetch
	for _, fetch := range fetches {
		if _, err := os.Stat(fetch.LocalPath); err == nil {
			result.CacheHits++
			continue
		}
		queue = append(queue, fetch)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = semaphore.NewWeighted(int64(f.concurrency))
	)
	for _, fetch := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[fetch.Key] = fmt.Errorf("storage: staging interrupted: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(fetch Fetch) {
			defer sem.Release(1)
			defer wg.Done()

			err := f.store.Download(ctx, fetch.Key, fetch.LocalPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[fetch.Key] = err
				return
			}
			result.Staged++
		}(fetch)
	}
	wg.Wait()

	return result
}
