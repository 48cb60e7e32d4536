package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/timmy/wallfeed/internal/cache"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/source"
)

// DefaultDownloadWorkers is used when SyncConfig.Workers is not set.
const DefaultDownloadWorkers = 4

type downloadJob struct {
	index     int
	candidate source.Candidate
}

type downloadResult struct {
	fetch *cache.FetchResult
	err   error
}

// downloadAll fetches every candidate through a pool of workers. Results keep
// the candidate order. onDone is called once per finished download.
func downloadAll(ctx context.Context, fetcher ImageFetcher, candidates []source.Candidate, workers int, onDone func(done int)) []downloadResult {
	if workers <= 0 {
		workers = DefaultDownloadWorkers
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	results := make([]downloadResult, len(candidates))
	jobs := make(chan downloadJob, workers*2)
	var finished atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results[job.index] = downloadResult{err: err}
					continue
				}
				res, err := fetcher.Fetch(ctx, job.candidate.URL)
				results[job.index] = downloadResult{fetch: res, err: err}
				if onDone != nil {
					onDone(int(finished.Add(1)))
				}
			}
		}()
	}

feed:
	for i, c := range candidates {
		select {
		case jobs <- downloadJob{index: i, candidate: c}:
		case <-ctx.Done():
			for j := i; j < len(candidates); j++ {
				results[j] = downloadResult{err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	logger.CtxDebug(ctx, "Downloads finished: candidates=%d, workers=%d", len(candidates), workers)
	return results
}
