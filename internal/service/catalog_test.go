package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/timmy/wallfeed/internal/domain"
)

func TestMergeFeed(t *testing.T) {
	c := domain.EmptyCatalog()
	c.Feed = []domain.CachedImage{img("b"), img("c")}

	got := MergeFeed(c, []domain.CachedImage{img("a"), img("b"), img("a")})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids(got.Feed), want) {
		t.Errorf("expected %v, got %v", want, ids(got.Feed))
	}
}

func TestMergeFeed_Idempotent(t *testing.T) {
	c := domain.EmptyCatalog()
	c.Feed = []domain.CachedImage{img("x"), img("y")}
	fresh := []domain.CachedImage{img("a"), img("x"), img("b")}

	once := MergeFeed(c, fresh)
	twice := MergeFeed(once, fresh)
	if !reflect.DeepEqual(ids(once.Feed), ids(twice.Feed)) {
		t.Errorf("merge not idempotent: %v vs %v", ids(once.Feed), ids(twice.Feed))
	}
}

func TestMergeFeed_KeepsFirstOccurrence(t *testing.T) {
	c := domain.EmptyCatalog()
	old := img("a")
	old.LocalPath = "/old.jpg"
	c.Feed = []domain.CachedImage{old}

	fresh := img("a")
	fresh.LocalPath = "/new.jpg"
	got := MergeFeed(c, []domain.CachedImage{fresh})
	if len(got.Feed) != 1 || got.Feed[0].LocalPath != "/new.jpg" {
		t.Errorf("expected fresh entry to win, got %+v", got.Feed)
	}
}

func TestPruneFeed(t *testing.T) {
	tests := []struct {
		name        string
		feed        []string
		favorites   []string
		max         int
		wantFeed    []string
		wantRemoved []string
	}{
		{
			name:        "under max untouched",
			feed:        []string{"a", "b"},
			max:         3,
			wantFeed:    []string{"a", "b"},
			wantRemoved: nil,
		},
		{
			name:        "removes from the end",
			feed:        []string{"a", "b", "c", "d"},
			max:         2,
			wantFeed:    []string{"a", "b"},
			wantRemoved: []string{"d", "c"},
		},
		{
			name:        "skips favorites at the end",
			feed:        []string{"a", "b", "c", "d"},
			favorites:   []string{"d"},
			max:         2,
			wantFeed:    []string{"a", "d"},
			wantRemoved: []string{"c", "b"},
		},
		{
			name:        "exceeds max when only favorites remain",
			feed:        []string{"a", "b", "c"},
			favorites:   []string{"a", "b", "c"},
			max:         1,
			wantFeed:    []string{"a", "b", "c"},
			wantRemoved: nil,
		},
		{
			name:        "partially forced",
			feed:        []string{"f1", "x", "f2", "f3"},
			favorites:   []string{"f1", "f2", "f3"},
			max:         2,
			wantFeed:    []string{"f1", "f2", "f3"},
			wantRemoved: []string{"x"},
		},
		{
			name:        "zero max",
			feed:        []string{"a", "b"},
			max:         0,
			wantFeed:    []string{},
			wantRemoved: []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := domain.EmptyCatalog()
			for _, id := range tt.feed {
				c.Feed = append(c.Feed, img(id))
			}
			for _, id := range tt.favorites {
				c.Favorites = append(c.Favorites, img(id))
			}

			got, removed := PruneFeed(c, tt.max)
			if !reflect.DeepEqual(ids(got.Feed), tt.wantFeed) {
				t.Errorf("feed: expected %v, got %v", tt.wantFeed, ids(got.Feed))
			}
			if len(tt.wantRemoved) == 0 && len(removed) == 0 {
				return
			}
			if !reflect.DeepEqual(ids(removed), tt.wantRemoved) {
				t.Errorf("removed: expected %v, got %v", tt.wantRemoved, ids(removed))
			}
		})
	}
}

// The prune order is "last non-favorited array position first". Since fresh
// items are prepended this evicts the oldest items, but an item's position,
// not its fetch time, decides.
func TestPruneFeed_PolicyIsPositional(t *testing.T) {
	c := domain.EmptyCatalog()
	newest := img("newest")
	oldest := img("oldest")
	c.Feed = []domain.CachedImage{oldest, newest}

	got, removed := PruneFeed(c, 1)
	if len(removed) != 1 || removed[0].ID != "newest" {
		t.Errorf("expected the last position to be pruned regardless of age, got %v", ids(removed))
	}
	if ids(got.Feed)[0] != "oldest" {
		t.Errorf("unexpected feed %v", ids(got.Feed))
	}
}

func TestPruneFeed_DoesNotMutateInput(t *testing.T) {
	c := domain.EmptyCatalog()
	c.Feed = []domain.CachedImage{img("a"), img("b"), img("c")}
	PruneFeed(c, 1)
	if !reflect.DeepEqual(ids(c.Feed), []string{"a", "b", "c"}) {
		t.Errorf("input feed mutated: %v", ids(c.Feed))
	}
}

func TestFavorites(t *testing.T) {
	c := domain.EmptyCatalog()
	c = AddFavorite(c, img("a"))
	c = AddFavorite(c, img("b"))
	c = AddFavorite(c, img("a"))
	if want := []string{"a", "b"}; !reflect.DeepEqual(ids(c.Favorites), want) {
		t.Errorf("expected %v, got %v", want, ids(c.Favorites))
	}

	c = RemoveFavorite(c, "a")
	c = RemoveFavorite(c, "missing")
	if want := []string{"b"}; !reflect.DeepEqual(ids(c.Favorites), want) {
		t.Errorf("expected %v, got %v", want, ids(c.Favorites))
	}
}

func TestCatalogService_FavoriteAndUnfavorite(t *testing.T) {
	fetcher := &fakeFetcher{dir: "/cache"}
	svc, _ := newTestCatalog(t, fetcher)
	ctx := context.Background()

	if _, err := svc.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		c.Feed = []domain.CachedImage{img("a"), img("b")}
		return c, nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Favorite(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Favorite(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	snap := svc.Snapshot(ctx)
	if len(snap.Favorites) != 1 || snap.Favorites[0].ID != "a" || len(snap.Feed) != 2 {
		t.Fatalf("unexpected catalog: %+v", snap)
	}

	// Still in the feed, so the file stays.
	if err := svc.Unfavorite(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetcher.removed) != 0 {
		t.Errorf("expected no file removal, got %v", fetcher.removed)
	}
	if err := svc.Unfavorite(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogService_FavoriteURLAndReclaim(t *testing.T) {
	fetcher := &fakeFetcher{dir: "/cache"}
	svc, store := newTestCatalog(t, fetcher)
	ctx := context.Background()

	added, err := svc.FavoriteURL(ctx, "https://example.com/pic.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.ID == "" || added.Resolution != "10x5" || added.SourceURL != "https://example.com/pic.png" {
		t.Errorf("unexpected image: %+v", added)
	}

	persisted := store.Read(ctx)
	if len(persisted.Favorites) != 1 || persisted.Favorites[0].ID != added.ID {
		t.Fatalf("expected favorite persisted, got %+v", persisted.Favorites)
	}

	if err := svc.Unfavorite(ctx, added.ID); err != nil {
		t.Fatal(err)
	}
	if len(fetcher.removed) != 1 || fetcher.removed[0] != added.LocalPath {
		t.Errorf("expected orphaned file reclaimed, got %v", fetcher.removed)
	}
}

func TestCatalogService_FavoriteURLFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{dir: "/cache", fail: map[string]bool{"https://bad.example.com/x.jpg": true}}
	svc, store := newTestCatalog(t, fetcher)
	if _, err := svc.FavoriteURL(context.Background(), "https://bad.example.com/x.jpg"); err == nil {
		t.Fatal("expected error")
	}
	if len(store.Read(context.Background()).Favorites) != 0 {
		t.Error("expected catalog unchanged")
	}
}

func TestCatalogService_UpdateErrorWritesNothing(t *testing.T) {
	svc, store := newTestCatalog(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")
	if _, err := svc.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		c.LastError = "should not persist"
		return c, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.Read(ctx).LastError != "" {
		t.Error("expected nothing written")
	}
}

func TestCatalogService_Items(t *testing.T) {
	svc, _ := newTestCatalog(t, nil)
	ctx := context.Background()
	_, _ = svc.Update(ctx, func(c domain.Catalog) (domain.Catalog, error) {
		c.Feed = []domain.CachedImage{img("a")}
		c.Favorites = []domain.CachedImage{img("b"), img("c")}
		return c, nil
	})

	feed, err := svc.Items(ctx, domain.CollectionFeed)
	if err != nil || len(feed) != 1 {
		t.Errorf("expected 1 feed item, got %d (%v)", len(feed), err)
	}
	favs, err := svc.Items(ctx, domain.CollectionFavorites)
	if err != nil || len(favs) != 2 {
		t.Errorf("expected 2 favorites, got %d (%v)", len(favs), err)
	}
	if _, err := svc.Items(ctx, "weekly"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}
