package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/source"
)

// SearchResult is the outcome of one interactive search.
type SearchResult struct {
	Version     uint64               `json:"version"`
	Options     domain.SearchOptions `json:"-"`
	Query       string               `json:"query"`
	Candidates  []source.Candidate   `json:"results"`
	Total       int                  `json:"total"`
	CompletedAt time.Time            `json:"completed_at"`
}

// SearchService runs interactive searches. Each call takes a new version
// number; a search that finishes after a newer one has started is discarded.
type SearchService struct {
	searcher source.Searcher
	logger   *logger.Logger
	now      func() time.Time

	version atomic.Uint64

	mu     sync.RWMutex
	latest *SearchResult
}

// NewSearchService creates a new search service.
// Parameters:
//   - searcher: remote search backend.
//   - log: logger instance.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(searcher source.Searcher, log *logger.Logger) *SearchService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &SearchService{
		searcher: searcher,
		logger:   log,
		now:      time.Now,
	}
}

func (s *SearchService) log(ctx context.Context) *logger.Logger {
	if logger.HasLogger(ctx) {
		return logger.FromContext(ctx)
	}
	return s.logger
}

// Search runs opts against the remote source. It returns ErrSuperseded when
// another search started while this one was in flight.
func (s *SearchService) Search(ctx context.Context, opts domain.SearchOptions) (*SearchResult, error) {
	v := s.version.Add(1)
	start := s.now()
	ctx = s.log(ctx).WithContext(ctx)

	candidates, err := s.searcher.Search(ctx, opts)

	if s.version.Load() != v {
		s.log(ctx).WithField("version", v).Debug("Discarding superseded search")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := &SearchResult{
		Version:     v,
		Options:     opts,
		Query:       opts.Query,
		Candidates:  candidates,
		Total:       len(candidates),
		CompletedAt: s.now(),
	}

	s.mu.Lock()
	if s.latest == nil || s.latest.Version < v {
		s.latest = result
	}
	s.mu.Unlock()

	logger.With(logger.Fields{"query": opts.Query}).
		WithCount(len(candidates)).
		WithDuration(s.now().Sub(start).Milliseconds()).
		Info(ctx, "Search completed")
	return result, nil
}

// Latest returns the most recent non-superseded result, or nil.
func (s *SearchService) Latest() *SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
