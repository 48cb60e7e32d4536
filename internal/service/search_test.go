package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/timmy/wallfeed/internal/source"
)

func TestSearchService_Search(t *testing.T) {
	searcher := &fakeSearcher{results: [][]source.Candidate{candidates("s", 3)}}
	svc := NewSearchService(searcher, logger.Discard())

	result, err := svc.Search(context.Background(), domain.SearchOptions{Query: "mountains", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Version != 1 || result.Total != 3 || result.Query != "mountains" {
		t.Errorf("unexpected result: %+v", result)
	}
	if svc.Latest() != result {
		t.Error("expected result stored as latest")
	}
}

func TestSearchService_Error(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("boom")}
	svc := NewSearchService(searcher, logger.Discard())

	if _, err := svc.Search(context.Background(), domain.SearchOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if svc.Latest() != nil {
		t.Error("expected no latest result after a failure")
	}
}

func TestSearchService_SupersededResultDiscarded(t *testing.T) {
	searcher := &fakeSearcher{
		results: [][]source.Candidate{candidates("old", 1), candidates("new", 2)},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	svc := NewSearchService(searcher, logger.Discard())

	type outcome struct {
		result *SearchResult
		err    error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	go func() {
		r, err := svc.Search(context.Background(), domain.SearchOptions{Query: "old"})
		first <- outcome{r, err}
	}()
	<-searcher.started
	go func() {
		r, err := svc.Search(context.Background(), domain.SearchOptions{Query: "new"})
		second <- outcome{r, err}
	}()
	<-searcher.started
	close(searcher.block)

	if got := <-first; !errors.Is(got.err, ErrSuperseded) {
		t.Errorf("expected first search superseded, got %+v", got)
	}
	got := <-second
	if got.err != nil {
		t.Fatalf("unexpected error: %v", got.err)
	}
	if got.result.Version != 2 || got.result.Query != "new" {
		t.Errorf("unexpected result: %+v", got.result)
	}
	if latest := svc.Latest(); latest == nil || latest.Version != 2 {
		t.Errorf("expected latest to be version 2, got %+v", latest)
	}
}
