package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/timmy/wallfeed/internal/cache"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/repository"
	"github.com/timmy/wallfeed/internal/settings"
	"github.com/timmy/wallfeed/internal/source"
)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	results [][]source.Candidate // one entry per call; last entry repeats
	err     error
	block   chan struct{} // when set, Search waits on it
	started chan struct{}
}

func (f *fakeSearcher) GetSourceID() string { return "fake" }

func (f *fakeSearcher) Search(ctx context.Context, _ domain.SearchOptions) ([]source.Candidate, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	if call >= len(f.results) {
		call = len(f.results) - 1
	}
	return f.results[call], nil
}

// fakeFetcher maps every URL to <dir>/<url hash>.jpg without touching the network.
type fakeFetcher struct {
	mu      sync.Mutex
	dir     string
	fail    map[string]bool
	fetched []string
	removed []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*cache.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[url] {
		return nil, fmt.Errorf("download of %s failed", url)
	}
	f.fetched = append(f.fetched, url)
	id := cache.HashURL(url)
	return &cache.FetchResult{ID: id, LocalPath: filepath.Join(f.dir, id+".jpg"), Width: 10, Height: 5, Downloaded: true}, nil
}

func (f *fakeFetcher) RemovePaths(_ context.Context, paths []string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, paths...)
	return nil
}

type applyCall struct {
	surface string
	paths   []string
}

type fakeApplier struct {
	mu    sync.Mutex
	calls []applyCall
	err   error
}

func (f *fakeApplier) Apply(_ context.Context, surface string, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, applyCall{surface: surface, paths: append([]string(nil), paths...)})
	return f.err
}

func (f *fakeApplier) Calls() []applyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]applyCall(nil), f.calls...)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs map[string]domain.SyncRun
}

func (f *fakeRecorder) Create(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = map[string]domain.SyncRun{}
	}
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRecorder) Update(_ context.Context, run *domain.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[run.ID]; !ok {
		return errors.New("unknown run")
	}
	f.runs[run.ID] = *run
	return nil
}

type fakeSettings struct {
	mu   sync.Mutex
	snap settings.Snapshot
}

func (f *fakeSettings) Snapshot(context.Context) (settings.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

type recordingProgress struct {
	mu     sync.Mutex
	stages []string
	last   SyncProgress
}

func (r *recordingProgress) Report(_ context.Context, p SyncProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stages) == 0 || r.stages[len(r.stages)-1] != p.Stage {
		r.stages = append(r.stages, p.Stage)
	}
	r.last = p
}

type countingRescheduler struct {
	mu    sync.Mutex
	count int
}

func (c *countingRescheduler) Reschedule(context.Context) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countingRescheduler) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func defaultSnapshot() settings.Snapshot {
	return settings.Snapshot{
		SyncEnabled: true,
		TriggerTime: "09:00",
		Mode:        settings.ModeDaily,
		Mapping:     settings.MappingShared,
		Limit:       20,
		MaxCached:   200,
	}
}

func newTestCatalog(t *testing.T, fetcher ImageFetcher) (*CatalogService, *repository.CatalogStore) {
	t.Helper()
	store := repository.NewCatalogStore(t.TempDir())
	return NewCatalogService(store, fetcher, logger.Discard()), store
}

func candidates(prefix string, n int) []source.Candidate {
	out := make([]source.Candidate, n)
	for i := range out {
		id := fmt.Sprintf("%s-%02d", prefix, i)
		out[i] = source.Candidate{ID: id, URL: "https://img.example.com/" + id + ".jpg", Tags: []string{"t"}}
	}
	return out
}

func img(id string) domain.CachedImage {
	return domain.CachedImage{ID: id, LocalPath: "/cache/" + id + ".jpg"}
}

func ids(images []domain.CachedImage) []string {
	out := make([]string, len(images))
	for i, im := range images {
		out[i] = im.ID
	}
	return out
}
